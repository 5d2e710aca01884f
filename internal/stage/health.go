package stage

// Health reports whether a stage handler can take jobs. The worker collects
// one record per registered job type for the status summary.
type Health struct {
	Stage  string `json:"stage"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy marks stage ready.
func Healthy(stage string) Health {
	return Health{Stage: stage, Ready: true}
}

// Unhealthy marks stage not ready. Detail names what the handler is missing,
// e.g. "completion client not configured".
func Unhealthy(stage, detail string) Health {
	return Health{Stage: stage, Detail: detail}
}

// String renders "stage: ready" or "stage: <detail>".
func (h Health) String() string {
	if h.Ready {
		return h.Stage + ": ready"
	}
	if h.Detail == "" {
		return h.Stage + ": not ready"
	}
	return h.Stage + ": " + h.Detail
}
