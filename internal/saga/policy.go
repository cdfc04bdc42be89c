package saga

// RestockPolicy decides whether an availability gap may be closed by restocking.
// It is read-only after construction.
type RestockPolicy struct {
	allowed map[string]struct{}
}

func NewRestockPolicy(productIDs []string) RestockPolicy {
	allowed := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if id != "" {
			allowed[id] = struct{}{}
		}
	}
	return RestockPolicy{allowed: allowed}
}

// Applies reports whether every missing product is allow-listed and was requested at
// quantity zero. Placeholder items are pre-provisioned this way; real shortages are not.
func (p RestockPolicy) Applies(missing map[string]int) bool {
	if len(missing) == 0 {
		return false
	}
	for id, qty := range missing {
		if _, ok := p.allowed[id]; !ok {
			return false
		}
		if qty != 0 {
			return false
		}
	}
	return true
}
