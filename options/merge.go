package options

// Merge combines layers into one record. Layers are given lowest precedence
// first, so the canonical call is
//
//	Merge(Defaults(), registered, call)
//
// Fields set in a later layer override earlier ones; fields left at their
// zero value never do. Params are merged key by key and empty values are
// ignored. No input is mutated and the result shares no memory with them.
func Merge(layers ...Options) Options {
	var out Options
	for _, l := range layers {
		if l.Protocol != "" {
			out.Protocol = l.Protocol
		}
		if l.Host != "" {
			out.Host = l.Host
		}
		if l.Port != 0 {
			out.Port = l.Port
		}
		if l.Username != "" {
			out.Username = l.Username
		}
		if l.Password != "" {
			out.Password = l.Password
		}
		if l.LogLevel != "" {
			out.LogLevel = l.LogLevel
		}
		for k, v := range l.Params {
			if v == "" {
				continue
			}
			if out.Params == nil {
				out.Params = make(map[string]string)
			}
			out.Params[k] = v
		}
	}
	return out
}

// Resolve merges the call layer over the registered layer and the built-in
// [Defaults].
func Resolve(registered, call Options) Options {
	return Merge(Defaults(), registered, call)
}
