// Package recovery turns the free-text answer of a vision model into a
// DetectionResult. It never fails: text that cannot be read as the expected
// JSON object degrades into an empty result that keeps the original text.
package recovery

import (
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"birdwatch/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ObservationKey is the key that holds the observation list in the model answer.
const ObservationKey = "birds"

// Strategy names the extraction step that produced a result.
type Strategy string

const (
	StrategyWhole      Strategy = "whole_text"
	StrategyFenced     Strategy = "fenced_block"
	StrategyBareObject Strategy = "bare_object"
	StrategyFallback   Strategy = "fallback"
)

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

	// KNOWN LIMITATION: single level of nesting only. Any object whose values
	// contain braces (every populated observation list does) cannot match, so
	// this step only rescues flat answers such as {"birds": [], "count": 0}.
	bareObject = regexp.MustCompile(`(?s)\{[^{}]*"` + ObservationKey + `"[^{}]*\}`)
)

// Outcome is a recovered result plus the step that produced it.
type Outcome struct {
	Result   model.DetectionResult
	Strategy Strategy
}

// Recover converts raw model text into a DetectionResult.
func Recover(text string) model.DetectionResult {
	return RecoverWithOutcome(text).Result
}

// RecoverWithOutcome tries each extraction step in order and keeps the first
// syntactically valid JSON object. Results from different steps are never merged.
func RecoverWithOutcome(text string) Outcome {
	if result, ok := decodeObject(strings.TrimSpace(text)); ok {
		return Outcome{Result: result, Strategy: StrategyWhole}
	}

	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		if result, ok := decodeObject(m[1]); ok {
			return Outcome{Result: result, Strategy: StrategyFenced}
		}
	}

	if m := bareObject.FindString(text); m != "" {
		if result, ok := decodeObject(m); ok {
			return Outcome{Result: result, Strategy: StrategyBareObject}
		}
	}

	return Outcome{
		Result: model.DetectionResult{
			Observations: []model.Observation{},
			Count:        0,
			RawResponse:  text,
		},
		Strategy: StrategyFallback,
	}
}

// object is one decoded JSON object level. Duplicate keys keep the last value.
type object map[string]jsoniter.RawMessage

// parseObject accepts exactly one JSON object; trailing bytes other than
// whitespace reject the candidate.
func parseObject(data []byte) (object, bool) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func (o object) get(key string) (jsoniter.Any, bool) {
	raw, ok := o[key]
	if !ok {
		return nil, false
	}
	return json.Get(raw), true
}

// decodeObject accepts any syntactically valid JSON object. Fields that are
// missing or of an unexpected type are left empty rather than rejected.
func decodeObject(candidate string) (model.DetectionResult, bool) {
	root, ok := parseObject([]byte(candidate))
	if !ok {
		return model.DetectionResult{}, false
	}

	result := model.DetectionResult{
		Observations: decodeObservations(root[ObservationKey]),
		Timestamp:    stringField(root, "timestamp"),
	}

	// The model's count is trusted as given; it is only derived when absent.
	if count, ok := numberField(root, "count"); ok {
		result.Count = int(count)
	} else {
		result.Count = len(result.Observations)
	}

	return result, true
}

func decodeObservations(raw jsoniter.RawMessage) []model.Observation {
	observations := []model.Observation{}

	var items []jsoniter.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return observations
	}

	for _, item := range items {
		obj, ok := parseObject(item)
		if !ok {
			continue
		}
		observations = append(observations, model.Observation{
			Species:        stringField(obj, "species"),
			ScientificName: stringField(obj, "scientific_name"),
			Confidence:     stringField(obj, "confidence"),
			Description:    stringField(obj, "description"),
			Location:       stringField(obj, "location"),
			BBox:           decodeBox(obj["bbox"]),
		})
	}
	return observations
}

func decodeBox(raw jsoniter.RawMessage) *model.BoundingBox {
	v, ok := parseObject(raw)
	if !ok {
		return nil
	}

	x, okX := numberField(v, "x")
	y, okY := numberField(v, "y")
	w, okW := firstNumber(v, "width", "w")
	h, okH := firstNumber(v, "height", "h")
	if !okX || !okY || !okW || !okH {
		return nil
	}
	return &model.BoundingBox{X: x, Y: y, Width: w, Height: h}
}

func stringField(obj object, key string) string {
	v, ok := obj.get(key)
	if !ok {
		return ""
	}
	switch v.ValueType() {
	case jsoniter.StringValue, jsoniter.NumberValue:
		return v.ToString()
	}
	return ""
}

func numberField(obj object, key string) (float64, bool) {
	v, ok := obj.get(key)
	if !ok {
		return 0, false
	}
	switch v.ValueType() {
	case jsoniter.NumberValue:
		return v.ToFloat64(), true
	case jsoniter.StringValue:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.ToString()), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

func firstNumber(obj object, keys ...string) (float64, bool) {
	for _, key := range keys {
		if f, ok := numberField(obj, key); ok {
			return f, true
		}
	}
	return 0, false
}
