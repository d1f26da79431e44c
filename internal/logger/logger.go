package logger

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"
)

func New(verbosity string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config.Level = level
	return config.Build()
}

// NewForTerminal is New with console encoding when stderr is a terminal.
func NewForTerminal(verbosity string) (*zap.Logger, error) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return New(verbosity)
	}
	config := zap.NewDevelopmentConfig()
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config.Level = level
	config.Development = false
	config.DisableStacktrace = true
	return config.Build()
}
