package service

import (
	"fmt"
	"strconv"
	"strings"
)

// Best-effort scalar coercions. Each returns nil instead of failing on
// unparseable input so that a bad field degrades to "unset" rather than
// aborting the conversion.

func toInt(v any) *int64 {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		n := int64(0)
		if x {
			n = 1
		}
		return &n
	case int:
		n := int64(x)
		return &n
	case int64:
		n := x
		return &n
	case float64:
		n := int64(x)
		return &n
	case float32:
		n := int64(x)
		return &n
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return nil
	}
	// Strings like "3.9" truncate to 3, matching the numeric path.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int64(f)
	return &n
}

func toFloat(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case float64:
		f := x
		return &f
	case float32:
		f := float64(x)
		return &f
	case bool:
		return nil
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func toBool(v any) *bool {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		b := x
		return &b
	case int:
		b := x != 0
		return &b
	case int64:
		b := x != 0
		return &b
	case float64:
		b := int64(x) != 0
		return &b
	}
	switch strings.ToLower(strings.TrimSpace(fmt.Sprint(v))) {
	case "1", "true", "yes", "y", "done", "finished":
		b := true
		return &b
	case "0", "false", "no", "n", "running", "pending":
		b := false
		return &b
	}
	return nil
}

func toString(v any) *string {
	if v == nil {
		return nil
	}
	s := fmt.Sprint(v)
	return &s
}

func trimmedString(v any) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return nil
	}
	return &s
}
