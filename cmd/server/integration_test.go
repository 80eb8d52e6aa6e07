//go:build integration

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/surveylogic/internal/audit"
	"github.com/liamcoop/surveylogic/survey"
)

// setupTestDB creates a PostgreSQL testcontainer and runs migrations
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../../migrations/000001_initial_schema.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}
	return db, cleanup
}

func startServer(t *testing.T, db *sql.DB) string {
	server, err := NewServerWithDB(db, survey.Postgres, survey.DefaultCacheConfig(), audit.NopRecorder{}, 0)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return ts.URL + "/api/v1"
}

// TestEndToEnd_SurveyRouting walks a tenant through storing a survey,
// routing respondents and editing rules against PostgreSQL
func TestEndToEnd_SurveyRouting(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	baseURL := startServer(t, db)

	t.Log("Step 1: Creating tenant...")
	tenantResp := makeRequest(t, "POST", baseURL+"/tenants", map[string]interface{}{"name": "Test Tenant"})
	tenantID := tenantResp["id"].(string)
	surveyURL := baseURL + "/tenants/" + tenantID + "/surveys/feedback"

	t.Log("Step 2: Storing survey...")
	saveResp := makeRequest(t, "PUT", surveyURL, map[string]interface{}{
		"name": "Feedback",
		"questions": []map[string]interface{}{
			{"id": "q1", "code": "AGE", "order": 1},
			{"id": "q2", "code": "CONSENT", "order": 2},
			{"id": "q3", "code": "SCORE", "order": 3},
		},
		"rules": []map[string]interface{}{{
			"id":               "adult-skip",
			"sourceQuestionId": "q1",
			"targetQuestionId": "q3",
			"action":           "skip_to",
			"priority":         10,
			"isActive":         true,
			"condition":        map[string]interface{}{"type": "greater", "field": "AGE", "value": 17},
		}},
	})
	validation := saveResp["validation"].(map[string]interface{})
	if validation["valid"] != true {
		t.Fatalf("Expected a valid rule set, got %v", validation)
	}

	t.Log("Step 3: Routing an adult...")
	next := makeRequest(t, "POST", surveyURL+"/next", map[string]interface{}{
		"currentQuestionId": "q1",
		"answers":           map[string]interface{}{"AGE": 30},
	})
	if next["nextQuestionId"] != "q3" || next["ruleId"] != "adult-skip" {
		t.Errorf("Expected adult to skip to q3 via adult-skip, got %v", next)
	}

	t.Log("Step 4: Routing a minor...")
	next = makeRequest(t, "POST", surveyURL+"/next", map[string]interface{}{
		"currentQuestionId": "q1",
		"answers":           map[string]interface{}{"AGE": 12},
	})
	if next["nextQuestionId"] != "q2" || next["reason"] != "linear" {
		t.Errorf("Expected minor to continue to q2, got %v", next)
	}

	t.Log("Step 5: Adding an end rule...")
	ruleResp := makeRequest(t, "POST", surveyURL+"/rules", map[string]interface{}{
		"name":             "no-consent",
		"sourceQuestionId": "q2",
		"action":           "end_survey",
		"isActive":         true,
		"condition":        map[string]interface{}{"type": "equals", "field": "CONSENT", "value": "no"},
	})
	ruleID := ruleResp["id"].(string)

	next = makeRequest(t, "POST", surveyURL+"/next", map[string]interface{}{
		"currentQuestionId": "q2",
		"answers":           map[string]interface{}{"CONSENT": "no"},
	})
	if next["end"] != true || next["ruleId"] != ruleID {
		t.Errorf("Expected the survey to end via %s, got %v", ruleID, next)
	}

	t.Log("Step 6: Listing rules...")
	rulesResp := makeRequestNoBody(t, "GET", surveyURL+"/rules")
	if rules, ok := rulesResp["rules"].([]interface{}); !ok || len(rules) != 2 {
		t.Errorf("Expected 2 rules, got %v", rulesResp)
	}

	t.Log("End-to-end test completed successfully!")
}

// TestEndToEnd_TenantsSurviveRestart checks that a new server sees stored tenants
func TestEndToEnd_TenantsSurviveRestart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	baseURL := startServer(t, db)
	tenantResp := makeRequest(t, "POST", baseURL+"/tenants", map[string]interface{}{"name": "Durable"})
	tenantID := tenantResp["id"].(string)
	makeRequest(t, "PUT", baseURL+"/tenants/"+tenantID+"/surveys/s1", map[string]interface{}{
		"name":      "Short",
		"questions": []map[string]interface{}{{"id": "q1", "code": "NAME", "order": 1}},
	})

	restarted := startServer(t, db)
	surveyResp := makeRequestNoBody(t, "GET", restarted+"/tenants/"+tenantID+"/surveys/s1")
	if surveyResp["name"] != "Short" {
		t.Errorf("Expected stored survey after restart, got %v", surveyResp)
	}
}

// TestEndToEnd_InvalidRuleRejected checks that a rule pointing at a missing
// question is refused with 422
func TestEndToEnd_InvalidRuleRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	baseURL := startServer(t, db)

	tenantResp := makeRequest(t, "POST", baseURL+"/tenants", map[string]interface{}{"name": "Conflict Test Tenant"})
	surveyURL := baseURL + "/tenants/" + tenantResp["id"].(string) + "/surveys/s1"
	makeRequest(t, "PUT", surveyURL, map[string]interface{}{
		"name":      "Short",
		"questions": []map[string]interface{}{{"id": "q1", "code": "NAME", "order": 1}},
	})

	resp, err := makeHTTPRequest("POST", surveyURL+"/rules", map[string]interface{}{
		"sourceQuestionId": "q1",
		"targetQuestionId": "q7",
		"action":           "skip_to",
		"isActive":         true,
		"condition":        map[string]interface{}{"type": "equals", "field": "NAME", "value": "x"},
	})
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 Unprocessable Entity, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	t.Logf("Rejection response: %s", string(body))
}

// Helper function to make HTTP requests with JSON body
func makeRequest(t *testing.T, method, url string, body interface{}) map[string]interface{} {
	resp, err := makeHTTPRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to make %s request to %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return result
}

// Helper function to make HTTP requests without body
func makeRequestNoBody(t *testing.T, method, url string) map[string]interface{} {
	return makeRequest(t, method, url, nil)
}

// Helper function to make raw HTTP requests
func makeHTTPRequest(method, url string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Do(req)
}
