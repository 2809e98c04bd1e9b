package detect

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/integridade/internal/model"
)

// SharedAddress finds fiscal addresses shared by several distinct entities.
// Matching is exact unless Canonicalize is enabled.
type SharedAddress struct {
	cfg model.AddressConfig
}

// NewSharedAddress creates the detector
func NewSharedAddress(cfg model.AddressConfig) *SharedAddress {
	return &SharedAddress{cfg: cfg}
}

func (d *SharedAddress) Name() string          { return "shared_address" }
func (d *SharedAddress) Kind() model.AlertKind { return model.KindSharedAddress }

// Detect reads the entity register, not the contract dataset
func (d *SharedAddress) Detect(in Input) ([]model.Alert, error) {
	if in.Entities == nil || in.Entities.Len() == 0 {
		return nil, &model.MissingFieldError{Detector: d.Name(), Fields: []model.Field{model.FieldTaxID, model.FieldAddress}}
	}

	type cluster struct {
		address string
		members map[string]model.EntityRecord
	}
	var order []string
	byAddress := make(map[string]*cluster)

	for _, e := range in.Entities.Records() {
		addr := strings.TrimSpace(e.Address)
		if addr == "" || e.TaxID == "" {
			continue
		}
		key := addr
		if d.cfg.Canonicalize {
			key = CanonicalAddress(addr)
		}
		c, ok := byAddress[key]
		if !ok {
			c = &cluster{address: addr, members: make(map[string]model.EntityRecord)}
			byAddress[key] = c
			order = append(order, key)
		}
		c.members[e.TaxID] = e
	}

	var alerts []model.Alert
	for _, key := range order {
		c := byAddress[key]
		if len(c.members) < d.cfg.MinEntities {
			continue
		}

		members := make([]model.EntityRecord, 0, len(c.members))
		for _, m := range c.members {
			members = append(members, m)
		}
		sort.Slice(members, func(i, j int) bool { return members[i].TaxID < members[j].TaxID })

		names := make([]string, len(members))
		for i, m := range members {
			names[i] = fmt.Sprintf("%s (%s)", m.Name, m.TaxID)
		}

		alerts = append(alerts, model.Alert{
			Kind:    model.KindSharedAddress,
			Subject: model.Subject{Address: c.address, Members: members},
			Metrics: model.Metrics{
				model.MetricMembers: float64(len(members)),
			},
			Description: fmt.Sprintf("%d entities registered at %q: %s",
				len(members), c.address, strings.Join(names, ", ")),
		})
	}

	model.SortAlerts(alerts, model.MetricMembers)
	return alerts, nil
}

// CanonicalAddress folds letter case, punctuation and runs of whitespace so
// that "Rua X, 13" and "rua x 13" compare equal
func CanonicalAddress(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == 'º' || r == 'ª':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}
