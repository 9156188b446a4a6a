package runtime

import (
	"reflect"
	"strings"
)

// ParseTag splits the value of tag into its name and options; nil if the tag is absent
func ParseTag(field reflect.StructField, tag string) []string {
	if tv := field.Tag.Get(tag); len(tv) > 0 {
		return strings.Split(tv, ",")
	}
	return nil
}

// TagName returns the name of the first tag in tags that sets one. Names of "-" are ignored
func TagName(field reflect.StructField, tags ...string) (string, bool) {
	for _, tag := range tags {
		parts := ParseTag(field, tag)
		if len(parts) == 0 {
			continue
		}
		if name := strings.TrimSpace(parts[0]); name != "" && name != "-" {
			return name, true
		}
	}
	return "", false
}

// HasOption returns true if tag lists option after its name
func HasOption(field reflect.StructField, tag, option string) bool {
	parts := ParseTag(field, tag)
	for i := 1; i < len(parts); i++ {
		if strings.TrimSpace(parts[i]) == option {
			return true
		}
	}
	return false
}
