package model

// BoundingBox is a normalized rectangle, each field in [0,100], origin top-left.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Observation is one detected bird.
type Observation struct {
	Species        string       `json:"species"`
	ScientificName string       `json:"scientific_name"`
	Confidence     string       `json:"confidence"`
	Description    string       `json:"description"`
	Location       string       `json:"location"`
	BBox           *BoundingBox `json:"bbox,omitempty"`
}

// DetectionResult is the structured answer for one analyze command.
type DetectionResult struct {
	Observations []Observation `json:"birds"`
	Count        int           `json:"count"`
	Timestamp    string        `json:"timestamp"`
	Error        string        `json:"error,omitempty"`
	RawResponse  string        `json:"raw_response,omitempty"`
}

// HasBoxes reports whether at least one observation carries a bounding box.
func (r DetectionResult) HasBoxes() bool {
	for _, o := range r.Observations {
		if o.BBox != nil {
			return true
		}
	}
	return false
}
