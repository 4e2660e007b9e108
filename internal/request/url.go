package request

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// BuildURL appends data to rawURL as a query string. Keys and values are
// percent-encoded and emitted in key order. With no entries rawURL is
// returned unchanged.
func BuildURL(rawURL string, data map[string]any) string {
	if len(data) == 0 {
		return rawURL
	}
	keys := sortedKeys(data)

	var b strings.Builder
	b.WriteString(rawURL)
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	for _, k := range keys {
		b.WriteString(sep)
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(FormatValue(data[k])))
		sep = "&"
	}
	return b.String()
}

// FormatValue renders a scalar payload value the way it is sent on the wire.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// multipartBody encodes data as multipart/form-data fields in key order.
func multipartBody(data map[string]any) ([]byte, string, error) {
	keys := sortedKeys(data)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, k := range keys {
		if err := mw.WriteField(k, FormatValue(data[k])); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
