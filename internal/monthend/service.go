// Package monthend coordinates a month-end close run: it loads the inputs
// through the parsers, runs the rule evaluator or the statement matcher, and
// records the outcome in the result store when one is configured.
//
// Example usage:
//
//	svc, err := monthend.NewService(monthend.DefaultConfig(), st, log)
//	result, err := svc.Evaluate(ctx, &monthend.EvaluateRequest{
//		RulesFile:   "rules.yaml",
//		CurrentFile: "pnl_current.json",
//		PriorFile:   "pnl_prior.json",
//	})
package monthend

import (
	"context"
	"fmt"
	"time"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/matcher"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/parsers"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/rules"
	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/store"
	apperrors "github.com/Vitaliy77/month-end-dashboard-sub000/pkg/errors"
	"github.com/Vitaliy77/month-end-dashboard-sub000/pkg/logger"
)

// ResultStore persists run outcomes. *store.Store implements it.
type ResultStore interface {
	SaveEvaluation(ctx context.Context, run *store.Run, findings []models.Finding) error
	SaveMatchRun(ctx context.Context, run *store.Run, batch *matcher.BatchResult) error
}

// Config holds configuration for the service
type Config struct {
	Rules    *rules.Config           `json:"rules" mapstructure:"rules"`
	Matching *matcher.MatchingConfig `json:"matching" mapstructure:"matching"`
	Parsing  *parsers.ParseConfig    `json:"parsing" mapstructure:"parsing"`
}

// DefaultConfig returns a default configuration for the service
func DefaultConfig() *Config {
	return &Config{
		Rules:    rules.DefaultConfig(),
		Matching: matcher.DefaultMatchingConfig(),
		Parsing:  parsers.DefaultParseConfig(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Rules == nil || c.Matching == nil || c.Parsing == nil {
		return fmt.Errorf("rules, matching and parsing configuration are required")
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if err := c.Parsing.Validate(); err != nil {
		return fmt.Errorf("parsing: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := &Config{}
	if c.Rules != nil {
		clone.Rules = c.Rules.Clone()
	}
	if c.Matching != nil {
		clone.Matching = c.Matching.Clone()
	}
	if c.Parsing != nil {
		clone.Parsing = c.Parsing.Clone()
	}
	return clone
}

// Service runs evaluations and matching passes
type Service struct {
	config       *Config
	evaluator    *rules.Evaluator
	engine       *matcher.Engine
	statements   *parsers.StatementParser
	transactions *parsers.TransactionParser
	store        ResultStore
	log          logger.Logger
}

// NewService creates a service. A nil config uses DefaultConfig; a nil st
// disables persistence.
func NewService(config *Config, st ResultStore, log logger.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "monthend", nil, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Service{
		config:       config,
		evaluator:    rules.NewEvaluator(config.Rules, log),
		engine:       matcher.NewEngine(config.Matching, log),
		statements:   parsers.NewStatementParser(config.Parsing),
		transactions: parsers.NewTransactionParser(config.Parsing),
		store:        st,
		log:          log.WithComponent("monthend"),
	}, nil
}

// Config returns a copy of the service configuration
func (s *Service) Config() *Config {
	return s.config.Clone()
}

// persist runs fn against the store and reports whether anything was saved
func (s *Service) persist(operation string, fn func(ResultStore) error) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	err := logger.TimedOperation(operation, s.log, func() error { return fn(s.store) })
	if err != nil {
		return false, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, operation)
	}
	return true, nil
}

func elapsed(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
