// Package chat defines the user, dialog and money types shared by the
// execution controller, the usage ledger and every store implementation.
package chat
