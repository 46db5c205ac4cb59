// Package integration contains the storefront Integration bounded context.
// It models orders pulled from an external storefront platform and the
// contracts needed to turn them into local sales documents.
//
// Key concepts:
//   - StorefrontOrder: immutable value object for an order fetched from the platform
//   - SyncSettings: per-store configuration driving document creation
//   - OrderSource / ProductSource: ports implemented by the storefront HTTP adapter
//   - MasterDataResolver: port for ensuring customers and items exist locally
//   - SyncLog / RunResult: the auditable outcome of a sync run
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
