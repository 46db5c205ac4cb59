// Package models contains GORM persistence models for the synced sales
// documents, the storefront master-data mappings and the sync log.
//
// Models carry all GORM tags and table mappings; domain types stay free of
// ORM concerns. Every model converts with ToDomain / FromDomain.
//
// Uniqueness of the storefront keys is enforced here, by unique indexes:
//   - sales_orders.storefront_order_id
//   - sales_invoices.storefront_order_id
//   - delivery_notes.storefront_fulfillment_id
package models
