package core

// ActorMeta is the fixed-layout metadata half of every compound
// message exchanged between actors: three consecutive int32 fields,
// with no trailing padding that isn't itself part of the fixed layout
// sender and receiver agree on ahead of time.
type ActorMeta struct {
	SenderRank int32
	SenderGid  int32
	UserTag    int32
}
