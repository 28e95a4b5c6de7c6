package webhook

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"relaychat-backend/internal/models"
)

// ReplyFields lists, in precedence order, the object fields whose value is
// shown as the reply text. The order is a product choice for the automation
// services we talk to today; other reply shapes fall back to pretty JSON.
var ReplyFields = []string{"output", "message", "text", "content", "response"}

// NormalizeReply turns a raw webhook response body into display text.
// A JSON object yields the first ReplyFields value that is set, or the whole
// object pretty-printed when none is. null, "", false and 0 count as unset.
// Anything else, including JSON that is not an object, is returned verbatim.
func NormalizeReply(body []byte) string {
	trimmed := bytes.TrimSpace(body)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
		return string(body)
	}

	for _, name := range ReplyFields {
		raw, ok := fields[name]
		if !ok || unset(raw) {
			continue
		}
		return fieldText(raw)
	}
	return prettyJSON(trimmed)
}

// FormatContent is the display form of a stored message. User text is shown
// as typed; system text that looks like a JSON object goes through
// NormalizeReply.
func FormatContent(sender, content string) string {
	if sender != models.SenderSystem {
		return content
	}
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return NormalizeReply([]byte(trimmed))
	}
	return content
}

func fieldText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return prettyJSON(raw)
}

func unset(raw json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch v := v.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case float64:
		return v == 0
	}
	return false
}

// prettyJSON re-encodes raw with two-space indentation. Numbers and strings
// are written in canonical form (1.50 becomes 1.5) and object keys keep
// their input order.
func prettyJSON(raw []byte) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var compact bytes.Buffer
	if err := writeCanonical(dec, &compact); err != nil {
		return string(raw)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact.Bytes(), "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func writeCanonical(dec *json.Decoder, buf *bytes.Buffer) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		start, end := byte(t), byte('}')
		if t == '[' {
			end = ']'
		}
		buf.WriteByte(start)
		for i := 0; dec.More(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if t == '{' {
				key, err := dec.Token()
				if err != nil {
					return err
				}
				writeString(buf, key.(string))
				buf.WriteByte(':')
			}
			if err := writeCanonical(dec, buf); err != nil {
				return err
			}
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
		buf.WriteByte(end)
	case string:
		writeString(buf, t)
	case float64:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case nil:
		buf.WriteString("null")
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates with a newline
	buf.Truncate(buf.Len() - 1)
}
