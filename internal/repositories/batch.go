package repositories

import "strings"

// maxInListSize bounds the bind parameters of one IN (...) list, well below
// the 65535 parameters a Postgres statement accepts.
const maxInListSize = 10000

// chunkIDs splits ids into consecutive slices of at most size elements.
func chunkIDs(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}

var arrayElemEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// textArray renders ids as a Postgres text[] literal, so an id list of any
// length binds as a single parameter.
func textArray(ids []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(arrayElemEscaper.Replace(id))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}
