package cache

import (
	"fmt"
	"strings"
)

// Namespace prefixes every key the API writes so a shared Redis stays tidy.
const Namespace = "tutorhub"

// Key families. Each family has its own TTL and invalidation rule.
const (
	FamilyLesson  = "lesson"
	FamilyCatalog = "catalog"
)

// LessonKey addresses the cached detail view of one lesson.
func LessonKey(lessonID string) string {
	return Namespace + ":" + FamilyLesson + ":" + lessonID
}

// CatalogKey addresses one cached product catalog page.
func CatalogKey(query string, page, pageSize int) string {
	return fmt.Sprintf("%s:%s:q=%s:p=%d:s=%d", Namespace, FamilyCatalog, strings.ToLower(strings.TrimSpace(query)), page, pageSize)
}

// CatalogPattern matches every cached catalog page.
func CatalogPattern() string {
	return Namespace + ":" + FamilyCatalog + ":*"
}

// Family returns the key family of a namespaced key, or "" for keys this API does not own.
func Family(key string) string {
	rest, ok := strings.CutPrefix(key, Namespace+":")
	if !ok {
		return ""
	}
	family, _, ok := strings.Cut(rest, ":")
	if !ok {
		return ""
	}
	switch family {
	case FamilyLesson, FamilyCatalog:
		return family
	}
	return ""
}
