package cli

// Options is the root for the CLI. Struct tags are interpreted by
// github.com/jessevdk/go-flags. Endpoint and doc flags override the
// config file, so simple invocations need no file at all.
type Options struct {
	Config   string `short:"f" long:"config" description:"ctl configuration YAML path"`
	Endpoint string `short:"e" long:"endpoint" description:"websocket endpoint, e.g. ws://localhost:8080/ws/docs"`
	Doc      string `short:"d" long:"doc" description:"document to attach to"`
	Verbose  bool   `long:"verbose" description:"log connection details to stderr"`

	Get   *GetCmd   `command:"get"   description:"Print one key of the document's root map"`
	Set   *SetCmd   `command:"set"   description:"Set one key of the document's root map"`
	Del   *DelCmd   `command:"del"   description:"Delete one key of the document's root map"`
	Keys  *KeysCmd  `command:"keys"  description:"List the keys of the document's root map"`
	Clear *ClearCmd `command:"clear" description:"Delete every key of the document's root map"`
	Dump  *DumpCmd  `command:"dump"  description:"Print the document tree with references expanded"`
	Watch *WatchCmd `command:"watch" description:"Stream document changes until interrupted"`
	Stats *StatsCmd `command:"stats" description:"Show server metrics, optionally sampling on an interval"`
}

// Init instantiates the sub-command referenced by the first positional
// argument so that go-flags can populate its fields.
func (o *Options) Init(firstArg string) {
	switch firstArg {
	case "get":
		o.Get = &GetCmd{}
	case "set":
		o.Set = &SetCmd{}
	case "del":
		o.Del = &DelCmd{}
	case "keys":
		o.Keys = &KeysCmd{}
	case "clear":
		o.Clear = &ClearCmd{}
	case "dump":
		o.Dump = &DumpCmd{}
	case "watch":
		o.Watch = &WatchCmd{}
	case "stats":
		o.Stats = &StatsCmd{}
	}
}
