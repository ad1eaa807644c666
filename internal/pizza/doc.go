// Package pizza is the entity repository of the ordering service: users and
// their role assignments, franchises, stores, the menu, and orders.
//
// Every operation checks one connection out of the database pool. Writes
// that touch more than one row run in a single transaction, so a failure
// leaves no partial user, franchise, or order behind. Deleting a user or a
// franchise removes its dependants explicitly; the schema has no cascading
// foreign keys to do it implicitly.
//
// Error kinds:
//   - ErrNotFound: unknown user, franchise, or menu item, or a failed
//     password check
//   - ErrConflict: unique email or franchise name already taken
//   - ErrInvalid: missing required fields
//   - ErrInternal: storage failure inside a transaction, cause attached
//   - database.ErrBusy: no pooled connection within the wait policy
//
// Order items store the price the caller charged. Editing the menu later
// never changes an existing order's total.
package pizza
