// Package owner resolves the person responsible for a finding.
//
// Resolution order: an owner set on the rule itself, then the enabled
// ownership entry that best matches the finding's account, then none.
package owner

import (
	"strings"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/models"
)

// AccountHint identifies the account a finding is about. Either field may be
// empty; Name is matched loosely against ownership name fragments.
type AccountHint struct {
	AccountType   models.AccountType
	AccountNumber string
	Name          string
}

// Resolve returns the owner for a finding produced by rule. It performs no
// I/O and never fails; the zero result has Source none.
func Resolve(rule *models.Rule, hint *AccountHint, owners []models.AccountOwner) models.OwnerAssignment {
	if rule != nil && rule.HasOwner() {
		return models.OwnerAssignment{
			OwnerName:  strings.TrimSpace(rule.OwnerName),
			OwnerEmail: strings.TrimSpace(rule.OwnerEmail),
			OwnerRole:  strings.TrimSpace(rule.OwnerRole),
			Source:     models.OwnerSourceRule,
		}
	}

	if hint != nil {
		var best *models.AccountOwner
		for i := range owners {
			candidate := &owners[i]
			if !matches(candidate, hint) {
				continue
			}
			if best == nil || moreSpecific(candidate, best) {
				best = candidate
			}
		}
		if best != nil {
			return models.OwnerAssignment{
				OwnerName:  best.OwnerName,
				OwnerEmail: best.OwnerEmail,
				OwnerRole:  best.OwnerRole,
				Source:     models.OwnerSourceAccount,
			}
		}
	}

	return models.OwnerAssignment{Source: models.OwnerSourceNone}
}

func matches(o *models.AccountOwner, hint *AccountHint) bool {
	if !o.Enabled {
		return false
	}
	if !strings.EqualFold(string(o.AccountType), string(hint.AccountType)) {
		return false
	}

	number := strings.TrimSpace(hint.AccountNumber)
	ownerNumber := strings.TrimSpace(o.AccountNumber)
	if number != "" && ownerNumber != "" && strings.EqualFold(number, ownerNumber) {
		return true
	}

	name := strings.ToLower(strings.TrimSpace(hint.Name))
	fragment := strings.ToLower(strings.TrimSpace(o.AccountNameContains))
	if name == "" || fragment == "" {
		return false
	}
	return strings.Contains(name, fragment) || strings.Contains(fragment, name)
}

// moreSpecific orders candidates by longest name fragment, then by owner
// email, name and account number so the winner never depends on list order.
func moreSpecific(a, b *models.AccountOwner) bool {
	la := len(strings.TrimSpace(a.AccountNameContains))
	lb := len(strings.TrimSpace(b.AccountNameContains))
	if la != lb {
		return la > lb
	}
	if a.OwnerEmail != b.OwnerEmail {
		return a.OwnerEmail < b.OwnerEmail
	}
	if a.OwnerName != b.OwnerName {
		return a.OwnerName < b.OwnerName
	}
	return a.AccountNumber < b.AccountNumber
}
