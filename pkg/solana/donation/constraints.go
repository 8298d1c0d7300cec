package donation

import (
	"github.com/code-payments/donation-ledger/pkg/ledger/constraint"
)

func decodeStore() constraint.Record {
	return &StoreAccount{}
}

func decodeUserStore() constraint.Record {
	return &UserStoreAccount{}
}

var systemProgramAccount = constraint.Account{
	Name:    "system_program",
	Program: SYSTEM_PROGRAM_ID,
}

// existingStore is the store record, re-derived from its owner and bump
func existingStore(mut bool) constraint.Account {
	return constraint.Account{
		Name: "store",
		Mut:  mut,
		Seeds: &constraint.Seeds{
			Prefix: StorePrefix,
			Key:    constraint.KeyRef{Account: "store", Field: "owner"},
		},
		Decoder: decodeStore,
	}
}

var initializeConstraints = constraint.Set{
	Accounts: []constraint.Account{
		{
			Name:   "owner",
			Signer: true,
			Mut:    true,
		},
		{
			Name: "bank",
		},
		{
			Name: "store",
			Init: &constraint.Init{Payer: "owner", Space: AccountSpace},
			Seeds: &constraint.Seeds{
				Prefix: StorePrefix,
				Key:    constraint.KeyRef{Account: "owner"},
			},
		},
		systemProgramAccount,
	},
}

var initializeUserConstraints = constraint.Set{
	Accounts: []constraint.Account{
		{
			Name:   "user",
			Signer: true,
			Mut:    true,
		},
		{
			Name: "user_store",
			Init: &constraint.Init{Payer: "user", Space: AccountSpace},
			Seeds: &constraint.Seeds{
				Prefix: UserStorePrefix,
				Key:    constraint.KeyRef{Account: "user"},
			},
		},
		{
			Name:    "bank",
			Address: &constraint.KeyRef{Account: "store", Field: "bank"},
		},
		existingStore(true),
		systemProgramAccount,
	},
}

var donateConstraints = constraint.Set{
	Accounts: []constraint.Account{
		{
			Name:   "from_user",
			Signer: true,
			Mut:    true,
		},
		{
			Name:    "bank",
			Mut:     true,
			Address: &constraint.KeyRef{Account: "store", Field: "bank"},
		},
		existingStore(true),
		{
			Name: "user_store",
			Mut:  true,
			Seeds: &constraint.Seeds{
				Prefix: UserStorePrefix,
				Key:    constraint.KeyRef{Account: "user_store", Field: "user"},
			},
			HasOne:  []constraint.HasOne{{Field: "user", Account: "from_user"}},
			Decoder: decodeUserStore,
		},
		systemProgramAccount,
	},
	Predicates: []constraint.Predicate{
		{
			Name: "user_store.bank == store.bank",
			Check: func(ctx *constraint.Context) bool {
				userStore := ctx.Record("user_store").(*UserStoreAccount)
				store := ctx.Record("store").(*StoreAccount)
				return userStore.Bank.Equal(store.Bank)
			},
		},
	},
}

var withdrawConstraints = constraint.Set{
	Accounts: []constraint.Account{
		{
			Name:    "bank",
			Signer:  true,
			Mut:     true,
			Address: &constraint.KeyRef{Account: "store", Field: "bank"},
		},
		{
			Name:    "owner",
			Mut:     true,
			Address: &constraint.KeyRef{Account: "store", Field: "owner"},
		},
		existingStore(false),
		systemProgramAccount,
	},
}
