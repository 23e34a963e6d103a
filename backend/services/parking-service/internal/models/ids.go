package models

import (
	"strings"

	"github.com/google/uuid"
	"go.jetify.com/typeid/v2"
)

const transactionIDPrefix = "txn"

// NewTransactionID returns a K-sortable, globally unique id such as
// "txn_01h2xcejqtf2nbrexx3vqjhp41".
func NewTransactionID() string {
	tid, err := typeid.Generate(transactionIDPrefix)
	if err != nil {
		return transactionIDPrefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return tid.String()
}

// NewUserID returns an external user id for auto-created users.
func NewUserID() string {
	return "U_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// NewDefaultPassword returns a random throwaway password for auto-created users.
func NewDefaultPassword() string {
	return uuid.NewString()
}
