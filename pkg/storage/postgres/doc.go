// Package postgres implements the persistence layer: a connection manager
// with primary/replica routing, the relational stores for users, courses,
// lessons, enrollments, reviews and notifications, and an in-process read
// cache for courses.
//
// Writes always go to the primary; reads round-robin across replicas and
// fall back to the primary when none are configured.
package postgres
