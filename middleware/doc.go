// Package middleware provides reusable dao.Middleware values.
//
// # Key Features
//
//   - [ComputedField]: derives fields from other fields on read
//   - [Tenant]: scopes every operation to the tenant carried by the context
//   - [SoftDelete]: hides deleted records and turns deletes into updates
//   - [References]: rejects inserts and replaces with dangling references
//   - [Audit]: emits an [AuditEvent] per write, e.g. to NATS with [NATSSink]
//   - [Cache]: serves reads from a [CacheStore] such as [RedisCache] or [LRUCache]
//
// Middlewares run in registration order before the driver and in reverse
// order after it. Register [Cache] after the middlewares that scope reads,
// such as [Tenant] and [SoftDelete], so that its keys cover their filters.
package middleware
