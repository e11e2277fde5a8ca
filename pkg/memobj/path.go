package memobj

import (
	"strconv"
	"strings"
)

// Path resolves a dotted path such as "channels[3].rxfreq" or
// "settings.skipflags[12]" relative to s.
func (s *Struct) Path(path string) (Node, error) {
	var cur Node = s
	for _, part := range strings.Split(path, ".") {
		name, indexes, err := splitIndexes(part)
		if err != nil {
			return nil, &UnknownFieldError{Path: cur.Name(), Name: part}
		}

		st, ok := cur.(*Struct)
		if !ok {
			return nil, &UnknownFieldError{Path: cur.Name(), Name: name}
		}
		next, err := st.Field(name)
		if err != nil {
			return nil, err
		}

		for _, i := range indexes {
			arr, ok := next.(*Array)
			if !ok {
				return nil, &IndexOutOfRangeError{Path: next.Name(), Index: i, Len: 0}
			}
			if next, err = arr.Index(i); err != nil {
				return nil, err
			}
		}
		cur = next
	}
	return cur, nil
}

// splitIndexes splits "name[1][2]" into "name" and [1 2].
func splitIndexes(part string) (string, []int, error) {
	open := strings.IndexByte(part, '[')
	if open < 0 {
		if part == "" {
			return "", nil, strconv.ErrSyntax
		}
		return part, nil, nil
	}
	name, rest := part[:open], part[open:]
	if name == "" {
		return "", nil, strconv.ErrSyntax
	}
	var indexes []int
	for rest != "" {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end < 0 {
			return "", nil, strconv.ErrSyntax
		}
		i, err := strconv.ParseInt(rest[1:end], 0, 32)
		if err != nil {
			return "", nil, err
		}
		indexes = append(indexes, int(i))
		rest = rest[end+1:]
	}
	return name, indexes, nil
}
