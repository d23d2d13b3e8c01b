package permit

import "github.com/oarkflow/permit/logger"

// Logger is re-exported for callers that only import the root package.
type Logger = logger.Logger

// WithLogger installs a Logger on the Resolver.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) error {
		if l == nil {
			l = logger.NewNullLogger()
		}
		r.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a custom trace ID generator used by Explain.
// A nil func keeps the default UUID generator.
func WithTraceIDFunc(f logger.TraceIDFunc) Option {
	return func(r *Resolver) error {
		if f == nil {
			return nil
		}
		r.traceIDFunc = f
		return nil
	}
}
