package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/liamcoop/surveylogic/expression"
	"github.com/liamcoop/surveylogic/internal/audit"
	"github.com/liamcoop/surveylogic/internal/logger"
	"github.com/liamcoop/surveylogic/multitenantengine"
	"github.com/liamcoop/surveylogic/rules"
	"github.com/liamcoop/surveylogic/survey"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"tenantsLoaded": len(s.engineManager.ListTenants()),
	})
}

func (s *Server) handleEvaluateExpression(w http.ResponseWriter, r *http.Request) {
	var req EvaluateExpressionRequest
	if !decode(w, r, &req) {
		return
	}

	v, ok := expression.SafeEvaluate(req.Expression)
	countEvaluation(ok)
	resp := EvaluateExpressionResponse{Valid: ok}
	if ok {
		resp.Value = &v
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, FunctionsResponse{Functions: expression.SupportedFunctions()})
}

func (s *Server) handleEvaluateCondition(w http.ResponseWriter, r *http.Request) {
	var req EvaluateConditionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Condition == nil {
		respondError(w, http.StatusBadRequest, "condition is required", nil)
		return
	}

	respondJSON(w, http.StatusOK, EvaluateConditionResponse{
		Result: rules.EvaluateCondition(req.Condition, req.Answers),
	})
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"tenants": s.engineManager.ListTenants(),
	})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	tenant, err := s.engineManager.CreateTenant(req.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}
	logger.Info("tenant created", "tenant", tenant.ID, "name", tenant.Name)
	respondJSON(w, http.StatusCreated, tenant)
}

// engine resolves the tenant in the URL, writing a 404 when it is unknown
func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*survey.Engine, bool) {
	en, err := s.engineManager.GetEngine(chi.URLParam(r, "tenantId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return nil, false
	}
	return en, true
}

func (s *Server) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	list, err := en.ListSurveys()
	if err != nil {
		respondEngineError(w, "failed to list surveys", err)
		return
	}
	respondJSON(w, http.StatusOK, SurveysListResponse{Surveys: list})
}

func (s *Server) handleSaveSurvey(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	var def survey.Definition
	if !decode(w, r, &def) {
		return
	}
	surveyID := chi.URLParam(r, "surveyId")
	if def.ID == "" {
		def.ID = surveyID
	}
	if def.ID != surveyID {
		respondError(w, http.StatusBadRequest, "survey id in body does not match the URL", nil)
		return
	}

	result, err := en.SaveSurvey(&def)
	if err != nil {
		respondEngineError(w, "failed to save survey", err)
		return
	}
	for _, warning := range result.Warnings {
		logger.Warn("rule set warning", "tenant", chi.URLParam(r, "tenantId"), "survey", def.ID, "warning", warning)
	}

	stored, err := en.Definition(def.ID)
	if err != nil {
		respondEngineError(w, "failed to reload survey", err)
		return
	}
	respondJSON(w, http.StatusOK, SaveSurveyResponse{Survey: stored, Validation: result})
}

func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	def, err := en.Definition(chi.URLParam(r, "surveyId"))
	if err != nil {
		respondEngineError(w, "failed to get survey", err)
		return
	}
	respondJSON(w, http.StatusOK, def)
}

func (s *Server) handleValidateSurvey(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	result, err := en.Validate(chi.URLParam(r, "surveyId"))
	if err != nil {
		respondEngineError(w, "failed to validate survey", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	var req NextQuestionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CurrentQuestionID == "" {
		respondError(w, http.StatusBadRequest, "currentQuestionId is required", nil)
		return
	}

	surveyID := chi.URLParam(r, "surveyId")
	decision, err := en.NextQuestion(surveyID, req.CurrentQuestionID, req.Answers)
	if err != nil {
		respondEngineError(w, "failed to route", err)
		return
	}

	routingDecisions.WithLabelValues(string(decision.Reason)).Inc()
	s.recorder.Record(audit.Entry{
		TenantID:   chi.URLParam(r, "tenantId"),
		SurveyID:   surveyID,
		QuestionID: req.CurrentQuestionID,
		Decision:   decision,
	})
	respondJSON(w, http.StatusOK, decision)
}

func (s *Server) handleShouldDisplay(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	var req AnswersRequest
	if !decode(w, r, &req) {
		return
	}

	questionID := chi.URLParam(r, "questionId")
	display, err := en.ShouldDisplay(chi.URLParam(r, "surveyId"), questionID, req.Answers)
	if err != nil {
		respondEngineError(w, "failed to resolve display", err)
		return
	}
	respondJSON(w, http.StatusOK, DisplayResponse{QuestionID: questionID, Display: display})
}

func (s *Server) handlePipe(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	var req PipeRequest
	if !decode(w, r, &req) {
		return
	}

	text, err := en.Pipe(chi.URLParam(r, "surveyId"), req.Text, req.Answers)
	if err != nil {
		respondEngineError(w, "failed to pipe text", err)
		return
	}
	respondJSON(w, http.StatusOK, PipeResponse{Text: text})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	var req CalculateRequest
	if !decode(w, r, &req) {
		return
	}
	surveyID := chi.URLParam(r, "surveyId")

	if req.Expression == "" {
		derived, err := en.DerivedValues(surveyID, req.Answers)
		if err != nil {
			respondEngineError(w, "failed to calculate derived fields", err)
			return
		}
		for _, d := range derived {
			countEvaluation(d.Value != nil)
		}
		respondJSON(w, http.StatusOK, CalculateResponse{Derived: derived})
		return
	}

	v, valid, err := en.Calculate(surveyID, req.Expression, req.Answers)
	if err != nil {
		respondEngineError(w, "failed to calculate", err)
		return
	}
	countEvaluation(valid)
	resp := CalculateResponse{Valid: &valid}
	if valid {
		resp.Value = &v
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	def, err := en.Definition(chi.URLParam(r, "surveyId"))
	if err != nil {
		respondEngineError(w, "failed to list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: def.Rules})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	var rule rules.RoutingRule
	if !decode(w, r, &rule) {
		return
	}

	if err := en.AddRule(chi.URLParam(r, "surveyId"), &rule); err != nil {
		respondEngineError(w, "failed to add rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	rule, err := en.GetRule(chi.URLParam(r, "surveyId"), chi.URLParam(r, "ruleId"))
	if err != nil {
		respondEngineError(w, "failed to get rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	var rule rules.RoutingRule
	if !decode(w, r, &rule) {
		return
	}
	rule.ID = chi.URLParam(r, "ruleId")

	if err := en.UpdateRule(chi.URLParam(r, "surveyId"), &rule); err != nil {
		respondEngineError(w, "failed to update rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	en, ok := s.engine(w, r)
	if !ok {
		return
	}
	if err := en.DeleteRule(chi.URLParam(r, "surveyId"), chi.URLParam(r, "ruleId")); err != nil {
		respondEngineError(w, "failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

// maxBodyBytes caps every JSON request body
const maxBodyBytes = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

// respondEngineError maps engine errors onto HTTP statuses
func respondEngineError(w http.ResponseWriter, message string, err error) {
	if result, ok := survey.IsRuleSetError(err); ok {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      message,
			Details:    err.Error(),
			Validation: &result,
		})
		return
	}

	switch {
	case errors.Is(err, survey.ErrNotFound), errors.Is(err, multitenantengine.ErrTenantNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, survey.ErrAlreadyExists):
		respondError(w, http.StatusConflict, message, err)
	case errors.Is(err, survey.ErrInvalidDefinition):
		respondError(w, http.StatusBadRequest, message, err)
	default:
		logger.Error(message, "error", err)
		respondError(w, http.StatusInternalServerError, message, err)
	}
}
