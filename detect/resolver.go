package detect

import (
	"github.com/Cyberappy/Hayabusa-setup/config"
	"github.com/Cyberappy/Hayabusa-setup/core"
)

// NotAvailable is the sentinel string produced when a field cannot be
// resolved on a record. Matchers treat it as "absent", never as an error.
const NotAvailable = "n/a"

// FieldResolver turns the short field names used in rules into concrete
// values on a record. Resolution order:
//
//  1. the name used directly as a full field path
//  2. a channel-scoped alias for the record's channel
//  3. a global alias
//  4. the name as a literal EventData member
//
// The resolver is immutable after construction and safe for concurrent use.
type FieldResolver struct {
	aliases *config.AliasTable
}

// NewFieldResolver builds a resolver over the given alias table. A nil table
// resolves full paths and EventData members only.
func NewFieldResolver(aliases *config.AliasTable) *FieldResolver {
	if aliases == nil {
		aliases = config.NewAliasTable()
	}
	return &FieldResolver{aliases: aliases}
}

// Resolve returns the value of name on ev and whether it was found.
func (r *FieldResolver) Resolve(ev *core.Event, name string) (any, bool) {
	if v, ok := ev.Value(name); ok {
		return v, true
	}
	if path, ok := r.aliases.Resolve(ev.Channel, name); ok {
		if v, ok := ev.Value(path); ok {
			return v, true
		}
	}
	if v, ok := ev.ExtendedValue(name); ok {
		return v, true
	}
	return nil, false
}

// ResolveString is Resolve with the value rendered as a string. Unresolved
// fields come back as the NotAvailable sentinel.
func (r *FieldResolver) ResolveString(ev *core.Event, name string) string {
	v, ok := r.Resolve(ev, name)
	if !ok || v == nil {
		return NotAvailable
	}
	return core.ToString(v)
}
