package alertsource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tinytelemetry/alertscope/internal/model"
)

// ErrMalformedDocument is returned when the payload is not a JSON alert document.
var ErrMalformedDocument = errors.New("malformed alert document")

// Field lookup order. The first key present wins, even when its value is an
// empty string. Dotted keys walk nested objects (Suricata EVE puts the
// category under "alert").
var (
	timestampKeys = []string{"timestamp", "@timestamp", "time"}
	sourceIPKeys  = []string{"sourceIp", "src_ip", "source_ip", "srcIp"}
	categoryKeys  = []string{"alertCategory", "alert.category", "category"}
	destIPKeys    = []string{"destIp", "dest_ip", "destination_ip", "dstIp"}
	signatureKeys = []string{"signature", "alert.signature"}
	severityKeys  = []string{"severity", "alert.severity"}
	eventTypeKeys = []string{"eventType", "event_type"}
)

// Decode reads alert records from r. It accepts a JSON array of objects, a
// single object, or a stream of newline-delimited objects. Elements that are
// not objects decode to a record with every field absent.
func Decode(r io.Reader) ([]model.AlertRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedDocument)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	records := []model.AlertRecord{}
	for {
		var value interface{}
		err := dec.Decode(&value)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch v := value.(type) {
		case []interface{}:
			for _, item := range v {
				records = append(records, recordFrom(item))
			}
		case map[string]interface{}:
			records = append(records, recordFromObject(v))
		default:
			return nil, fmt.Errorf("%w: top-level %T is neither an array nor an object", ErrMalformedDocument, value)
		}
	}
	return records, nil
}

func recordFrom(item interface{}) model.AlertRecord {
	obj, ok := item.(map[string]interface{})
	if !ok {
		return model.AlertRecord{}
	}
	return recordFromObject(obj)
}

func recordFromObject(raw map[string]interface{}) model.AlertRecord {
	return model.AlertRecord{
		Timestamp:     lookupString(raw, timestampKeys...),
		SourceIP:      lookupString(raw, sourceIPKeys...),
		AlertCategory: lookupString(raw, categoryKeys...),
		DestIP:        lookupString(raw, destIPKeys...),
		Signature:     lookupString(raw, signatureKeys...),
		Severity:      lookupInt(raw, severityKeys...),
		EventType:     lookupString(raw, eventTypeKeys...),
	}
}

// lookupString returns the first key whose value is a JSON scalar.
func lookupString(raw map[string]interface{}, keys ...string) *string {
	for _, k := range keys {
		v, ok := lookup(raw, k)
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok {
			return &s
		}
	}
	return nil
}

func lookupInt(raw map[string]interface{}, keys ...string) *int {
	s := lookupString(raw, keys...)
	if s == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*s))
	if err != nil {
		return nil
	}
	return &n
}

// lookup resolves key literally first, then as a dotted path.
func lookup(raw map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}

	var cur interface{} = raw
	for _, part := range strings.Split(key, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// scalarString stringifies JSON scalars. Null, objects and arrays are not keys.
func scalarString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
