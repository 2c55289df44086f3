package metrics

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides no-op metrics components. Applications
// that want real instrumentation include the infrastructure metrics module
// instead of this one.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewNoOpMetricRecorder,
		fx.As(new(MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewNoOpTracer,
		fx.As(new(Tracer)),
	)),
)
