package engine

type Result struct {
	ID        string            `json:"id"`
	Artifacts []string          `json:"artifacts,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}
