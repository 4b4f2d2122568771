package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ugagro/greenwatch/internal/model"
)

// ErrDecode marks a body that is not a usable reading: malformed JSON, a
// non-object top level, or an envelope reporting success=false.
var ErrDecode = errors.New("decoding reading")

// Decode parses a response body into a Reading. Two shapes are accepted:
//
//	flat:     {"temperature": 21.5, "humidity": 60, ...}
//	envelope: {"success": true, "data": {"latest": {...}, "chartData": {"labels": [...], "<field>": [...]}}}
//
// Numbers are kept as json.Number so that integer and decimal payloads are
// parsed the same way downstream.
func Decode(body []byte) (*model.Reading, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	r := &model.Reading{ReceivedAt: time.Now()}

	if !isEnvelope(obj) {
		r.Fields = obj
		return r, nil
	}

	if ok, _ := obj["success"].(bool); !ok {
		msg, _ := obj["message"].(string)
		if msg == "" {
			msg, _ = obj["error"].(string)
		}
		return nil, fmt.Errorf("%w: source reported failure %q", ErrDecode, msg)
	}
	data, ok := obj["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: envelope without data object", ErrDecode)
	}
	latest, ok := data["latest"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: envelope without data.latest object", ErrDecode)
	}
	r.Fields = latest
	if cd, ok := data["chartData"].(map[string]any); ok {
		r.History = decodeChartData(cd)
	}
	return r, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrDecode)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrDecode, v)
	}
	return obj, nil
}

// isEnvelope reports whether obj is a {success, ...} reply. A boolean
// success key is enough: failure replies may omit data. Sensor payloads
// never carry one.
func isEnvelope(obj map[string]any) bool {
	_, ok := obj["success"].(bool)
	return ok
}

func decodeChartData(cd map[string]any) *model.ChartData {
	out := &model.ChartData{Series: map[string][]any{}}
	for k, v := range cd {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		if k == "labels" {
			for _, l := range arr {
				if s, ok := l.(string); ok {
					out.Labels = append(out.Labels, s)
				} else {
					out.Labels = append(out.Labels, fmt.Sprint(l))
				}
			}
			continue
		}
		out.Series[k] = arr
	}
	return out
}
