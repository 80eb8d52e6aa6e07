package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liamcoop/surveylogic/expression"
	"github.com/liamcoop/surveylogic/rules"
	"github.com/liamcoop/surveylogic/survey"
)

var errInvalidSurvey = errors.New("survey definition is invalid")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "surveyctl",
		Short:         "Author and check survey logic",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newEvalCmd(),
		newFunctionsCmd(),
		newValidateCmd(),
		newNextCmd(),
		newPipeCmd(),
	)
	return root
}

func newEvalCmd() *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an arithmetic expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			v, err := expression.Evaluate(args[0])
			if err != nil {
				fmt.Fprintln(out, "null")
				if explain {
					fmt.Fprintln(out, "reason:", err)
				}
				return nil
			}
			fmt.Fprintln(out, rules.Num(v).Text())
			return nil
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print why an expression has no value")
	return cmd
}

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the functions expressions may call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range expression.SupportedFunctions() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate <survey.yaml>",
		Short: "Check a survey definition and its rule set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := survey.LoadDefinition(args[0])
			if err != nil {
				return err
			}

			result := rules.ValidateRuleSet(def.Rules, def.Questions)
			if err := survey.ValidateDefinition(def); err != nil {
				result.Valid = false
				result.Errors = append([]string{err.Error()}, result.Errors...)
			}

			if err := printValidation(cmd.OutOrStdout(), result, asJSON); err != nil {
				return err
			}
			if !result.Valid {
				return errInvalidSurvey
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printValidation(out io.Writer, result rules.ValidationResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Valid {
		fmt.Fprintln(out, "valid")
	} else {
		fmt.Fprintln(out, "invalid")
	}
	for _, e := range result.Errors {
		fmt.Fprintln(out, "error:", e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(out, "warning:", w)
	}
	return nil
}

func newNextCmd() *cobra.Command {
	var current, answers string
	cmd := &cobra.Command{
		Use:   "next <survey.yaml>",
		Short: "Show where a respondent goes after a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, parsed, err := loadWithAnswers(args[0], answers)
			if err != nil {
				return err
			}
			decision := rules.ResolveNext(current, def.Questions, def.Rules, parsed)

			out := cmd.OutOrStdout()
			if decision.End {
				fmt.Fprintf(out, "end (%s)", decision.Reason)
			} else {
				fmt.Fprintf(out, "%s (%s)", decision.NextQuestionID, decision.Reason)
			}
			if decision.RuleID != "" {
				fmt.Fprintf(out, " via rule %s", decision.RuleID)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "id of the question just answered")
	cmd.Flags().StringVar(&answers, "answers", "{}", "answers as a JSON object")
	_ = cmd.MarkFlagRequired("current")
	return cmd
}

func newPipeCmd() *cobra.Command {
	var text, answers string
	cmd := &cobra.Command{
		Use:   "pipe <survey.yaml>",
		Short: "Substitute answers into question text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, parsed, err := loadWithAnswers(args[0], answers)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rules.Pipe(text, parsed, def.Questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "text containing {CODE} placeholders")
	cmd.Flags().StringVar(&answers, "answers", "{}", "answers as a JSON object")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func loadWithAnswers(path, raw string) (*survey.Definition, rules.AnswerMap, error) {
	def, err := survey.LoadDefinition(path)
	if err != nil {
		return nil, nil, err
	}
	var answers rules.AnswerMap
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&answers); err != nil {
		return nil, nil, fmt.Errorf("invalid --answers: %w", err)
	}
	return def, answers, nil
}
