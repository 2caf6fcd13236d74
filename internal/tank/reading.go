// Package tank holds the point-in-time tank reading produced by the polling
// collaborator and the decoding rules for its two wire dialects: the
// dashboard's camelCase shape and the inspection export shape
// (Cliente, Unidade, Tanque, Produto, QuantidadeDeAgua, DataMedicao).
package tank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shawn/tankwatch/internal/apperr"
)

// Reading is an immutable snapshot of one tank. Fields not understood by the
// decoder are kept and re-emitted by MarshalJSON so webhook consumers receive
// the object as it was submitted.
type Reading struct {
	TankID        string
	StationID     string
	StationName   string
	ClientName    string
	ProductName   string
	CurrentVolume float64
	Capacity      float64
	WaterAmount   float64
	MeasuredAt    string

	raw map[string]json.RawMessage
}

// field aliases, first match wins
var (
	tankIDKeys      = []string{"tankId", "Tanque"}
	stationIDKeys   = []string{"stationId"}
	stationNameKeys = []string{"stationName", "Unidade"}
	clientKeys      = []string{"clientName", "Cliente"}
	productKeys     = []string{"productName", "Produto"}
	volumeKeys      = []string{"currentVolume"}
	capacityKeys    = []string{"capacity"}
	waterKeys       = []string{"waterAmount", "QuantidadeDeAgua"}
	measuredKeys    = []string{"measuredAt", "DataMedicao"}
)

// FillPercent returns currentVolume / capacity * 100. A reading without a
// positive capacity reports 0; callers reject such readings with Validate.
func (r Reading) FillPercent() float64 {
	if !(r.Capacity > 0) {
		return 0
	}
	return r.CurrentVolume / r.Capacity * 100
}

// HasWater reports whether water contamination was measured.
func (r Reading) HasWater() bool {
	return r.WaterAmount > 0
}

// Validate checks the preconditions for fill-level classification.
func (r Reading) Validate() error {
	// written negated so NaN fails too
	if !(r.Capacity > 0) {
		return apperr.Invalid("capacity", "must be greater than zero for tank %q", r.TankID)
	}
	if !(r.CurrentVolume >= 0) {
		return apperr.Invalid("currentVolume", "must be a non-negative number for tank %q", r.TankID)
	}
	return nil
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	var err error
	var out Reading
	out.TankID = stringField(obj, tankIDKeys)
	out.StationID = stringField(obj, stationIDKeys)
	out.StationName = stringField(obj, stationNameKeys)
	out.ClientName = stringField(obj, clientKeys)
	out.ProductName = stringField(obj, productKeys)
	out.MeasuredAt = stringField(obj, measuredKeys)
	if out.CurrentVolume, err = numberField(obj, volumeKeys); err != nil {
		return err
	}
	if out.Capacity, err = numberField(obj, capacityKeys); err != nil {
		return err
	}
	if out.WaterAmount, err = numberField(obj, waterKeys); err != nil {
		return err
	}
	out.raw = obj
	*r = out
	return nil
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if r.raw != nil {
		return json.Marshal(r.raw)
	}
	return json.Marshal(struct {
		TankID        string  `json:"tankId"`
		StationID     string  `json:"stationId,omitempty"`
		StationName   string  `json:"stationName,omitempty"`
		ClientName    string  `json:"clientName,omitempty"`
		ProductName   string  `json:"productName,omitempty"`
		CurrentVolume float64 `json:"currentVolume"`
		Capacity      float64 `json:"capacity"`
		WaterAmount   float64 `json:"waterAmount"`
		MeasuredAt    string  `json:"measuredAt,omitempty"`
	}{r.TankID, r.StationID, r.StationName, r.ClientName, r.ProductName,
		r.CurrentVolume, r.Capacity, r.WaterAmount, r.MeasuredAt})
}

// DecodeBatch reads a JSON array of readings. Malformed input is reported as
// a ValidationError so the HTTP layer can answer 400.
func DecodeBatch(body io.Reader) ([]Reading, error) {
	dec := json.NewDecoder(body)
	var readings []Reading
	if err := dec.Decode(&readings); err != nil {
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, &apperr.ValidationError{Field: "body", Message: fmt.Sprintf("expected a JSON array of tank readings: %v", err)}
	}
	return readings, nil
}

// WithWater returns the readings that report water contamination, in input order.
func WithWater(readings []Reading) []Reading {
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if r.HasWater() {
			out = append(out, r)
		}
	}
	return out
}

func lookup(obj map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null"
}

func stringField(obj map[string]json.RawMessage, keys []string) string {
	v, ok := lookup(obj, keys)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// numbers and other scalars keep their literal form
	return strings.TrimSpace(string(v))
}

func numberField(obj map[string]json.RawMessage, keys []string) (float64, error) {
	key := keys[len(keys)-1]
	for _, k := range keys {
		if v, ok := obj[k]; ok && !isNull(v) {
			key = k
			break
		}
	}
	v, ok := lookup(obj, keys)
	if !ok {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, apperr.Invalid(key, "not a number: %s", v)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		// inspection exports use a decimal comma
		if f, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err != nil {
			return 0, apperr.Invalid(key, "not a number: %q", s)
		}
	}
	// ParseFloat accepts NaN and Inf spellings
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperr.Invalid(key, "must be a finite number, got %s", v)
	}
	return f, nil
}
