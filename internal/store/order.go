package store

// Ordering rules shared by both backends. The SQL ORDER BY clauses in the
// SQLite backend and the comparators here must stay in lockstep so that the
// two backends return byte-identical read results for the same writes.

// lessKey orders resource keys lexicographically by (kind, name,
// namespace, context). Used as the final tie-break so results never depend
// on insertion order.
func lessKey(a, b ResourceKey) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Namespace != b.Namespace {
		return a.Namespace < b.Namespace
	}
	return a.Context < b.Context
}

// lessRecentResource orders by most-recent access first, then higher
// access count, then key order.
func lessRecentResource(a, b ResourceAccess) bool {
	if a.TsUnixMs != b.TsUnixMs {
		return a.TsUnixMs > b.TsUnixMs
	}
	if a.AccessCount != b.AccessCount {
		return a.AccessCount > b.AccessCount
	}
	return lessKey(a.Key, b.Key)
}

// lessTopResource orders by higher access count first, then most recent,
// then key order.
func lessTopResource(a, b ResourceAccess) bool {
	if a.AccessCount != b.AccessCount {
		return a.AccessCount > b.AccessCount
	}
	if a.TsUnixMs != b.TsUnixMs {
		return a.TsUnixMs > b.TsUnixMs
	}
	return lessKey(a.Key, b.Key)
}

// lessRecentQuery orders by most-recent first; equal timestamps fall back
// to the higher surrogate id, which is assigned in insert order.
func lessRecentQuery(a, b SearchQuery) bool {
	if a.TsUnixMs != b.TsUnixMs {
		return a.TsUnixMs > b.TsUnixMs
	}
	return a.ID > b.ID
}

// lessCommandStat orders by invocation count, then most recent use, then
// command id.
func lessCommandStat(a, b CommandStat) bool {
	if a.InvocationCount != b.InvocationCount {
		return a.InvocationCount > b.InvocationCount
	}
	if a.LastUsedUnixMs != b.LastUsedUnixMs {
		return a.LastUsedUnixMs > b.LastUsedUnixMs
	}
	return a.CommandID < b.CommandID
}
