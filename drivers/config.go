package drivers

import "github.com/jgaa/wfde/configtree"

// LoadAccounts reads a map-shaped "Accounts" subtree - one child per
// username, each with Pass and Home values - into an Account slice, the
// same map-of-named-entries shape entity.Build uses for Mounts.
func LoadAccounts(cfg configtree.Tree) []Account {
	if cfg == nil {
		return nil
	}

	names := cfg.EnumNodes("")
	accounts := make([]Account, 0, len(names))

	for _, name := range names {
		sub := cfg.Sub(name)
		if sub == nil {
			continue
		}

		accounts = append(accounts, Account{
			User: name,
			Pass: sub.GetValue("Pass", ""),
			Home: sub.GetValue("Home", "/"),
		})
	}

	return accounts
}
