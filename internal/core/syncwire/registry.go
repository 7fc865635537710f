package syncwire

// EntityDef describes how one entity type maps to storage.
// Writable types may be pushed by devices; the rest are produced only by
// server-side ledger code and flow to devices through pull.
type EntityDef struct {
	Type     string
	Table    string
	Writable bool
}

// registry is the fixed entity-type table both sides agree on.
// Unknown entity types received on apply are silently skipped so old clients
// survive new server-side types.
var registry = []EntityDef{
	{Type: "product", Table: "cat_products", Writable: true},
	{Type: "product_unit", Table: "cat_product_units", Writable: true},
	{Type: "customer", Table: "cat_customers", Writable: true},
	{Type: "supplier", Table: "cat_suppliers", Writable: true},
	{Type: "account", Table: "cat_accounts", Writable: true},
	{Type: "sale", Table: "doc_sales", Writable: true},
	{Type: "sale_item", Table: "doc_sale_items", Writable: true},
	{Type: "inventory_movement", Table: "reg_inventory_movements", Writable: false},
	{Type: "finance_entry", Table: "reg_finance_entries", Writable: false},
	{Type: "receivable", Table: "reg_receivables", Writable: false},
	{Type: "payment", Table: "reg_payments", Writable: false},
}

var byType = func() map[string]EntityDef {
	m := make(map[string]EntityDef, len(registry))
	for _, def := range registry {
		m[def.Type] = def
	}
	return m
}()

// Lookup returns the definition for an entity type.
func Lookup(entityType string) (EntityDef, bool) {
	def, ok := byType[entityType]
	return def, ok
}

// TableFor returns the storage table for an entity type.
func TableFor(entityType string) (string, bool) {
	def, ok := byType[entityType]
	return def.Table, ok
}

// IsWritable reports whether devices may push this entity type.
func IsWritable(entityType string) bool {
	def, ok := byType[entityType]
	return ok && def.Writable
}

// EntityTypes returns all known entity types in registry order.
func EntityTypes() []string {
	out := make([]string, 0, len(registry))
	for _, def := range registry {
		out = append(out, def.Type)
	}
	return out
}
