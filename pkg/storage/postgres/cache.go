package postgres

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CourseCache is an in-process LRU for single-course reads. Entries expire
// after the configured TTL; writes invalidate eagerly.
type CourseCache struct {
	lru *expirable.LRU[int64, *Course]
}

// NewCourseCache creates a cache holding up to size entries for ttl
func NewCourseCache(size int, ttl time.Duration) *CourseCache {
	return &CourseCache{lru: expirable.NewLRU[int64, *Course](size, nil, ttl)}
}

// Get returns the cached course, if present and unexpired
func (c *CourseCache) Get(id int64) (*Course, bool) {
	return c.lru.Get(id)
}

// Put stores a course
func (c *CourseCache) Put(course *Course) {
	c.lru.Add(course.ID, course)
}

// Invalidate drops a course after a write
func (c *CourseCache) Invalidate(id int64) {
	c.lru.Remove(id)
}

// Len returns the number of cached entries
func (c *CourseCache) Len() int {
	return c.lru.Len()
}
