/*
Package message implements arena-backed protobuf messages accessed through
View and Mut proxies.

A message type is described by a Descriptor. An Owned message holds the
storage of one message and the arena handle it was allocated from:

	person := message.MustDescriptor("Person",
		message.FieldDesc{Number: 1, Name: "name", Kind: message.StringKind},
		message.FieldDesc{Number: 2, Name: "id", Kind: message.Int32Kind, Label: message.LabelOptional},
		message.FieldDesc{Number: 3, Name: "tags", Kind: message.StringKind, Label: message.LabelRepeated},
	)

	o := message.New(person)
	defer o.Release()

	m := o.Mut()
	message.Set(m, 1, "Ada")
	message.Entry[int32](m, 2).Set(36)
	message.MutRepeated[string](m, 3).Extend("math", "engines")
	m.Done()

# Borrows

Views and Muts borrow the Owned message. At any time there is either one
live Mut or any number of live Views, and a proxy never outlives the
borrow it was derived from. These rules are checked at run time:

  - Owned.View, Owned.Mut, AsView and AsMut start a borrow that must be
    ended with Done.
  - While a reborrow is live its parent is frozen: fully for AsMut, for
    writing for AsView.
  - IntoView downgrades a Mut in place; IntoMut returns the Mut itself.
  - Field, submessage and repeated proxies obtained from a proxy share its
    borrow; calling Done on them has no effect.
  - A proxy taken through a Mut expires when its slot is taken again or
    replaced through the parent (Set, SetMessage, Attach, ClearField,
    Clear, CopyFrom, Truncate, Delete). Proxies of different fields stay
    usable side by side.

A Frozen message, made with Owned.Freeze, is immutable. Share returns
another handle holding its own reference on the arena, so handles on
different goroutines are released independently.

Violations panic with ErrBorrowConflict, ErrBorrowExpired, ErrBorrowActive
or ErrReleased.

# Presence

Fields with LabelOptional track presence. Entry returns a FieldEntry whose
Present and Absent methods select the matching state; a read through
FieldView.Optional returns an Optional carrying both the value (or the
default) and whether it was set. LabelImplicit fields are present when they
differ from their zero value.

# Submessages

Reading an unset submessage yields the default instance of its type, which
is backed by one shared zeroed block and allocates nothing. Mut.Message
creates the submessage on first use. Mut.Attach moves a separately built
Owned message into a parent by fusing the two arenas.
*/
package message
