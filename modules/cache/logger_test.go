package cache

import "github.com/go-monolith/mono/pkg/types"

type nopLogger struct{}

func (l *nopLogger) Debug(_ string, _ ...any)          {}
func (l *nopLogger) Info(_ string, _ ...any)           {}
func (l *nopLogger) Warn(_ string, _ ...any)           {}
func (l *nopLogger) Error(_ string, _ ...any)          {}
func (l *nopLogger) With(_ ...any) types.Logger        { return l }
func (l *nopLogger) WithModule(_ string) types.Logger { return l }
func (l *nopLogger) WithError(_ error) types.Logger   { return l }
