package session

import (
	"regexp"
	"strconv"
)

// uidParsers recognise the shapes a serialized session can carry the user
// id in. Order matters: the first parser that matches decides.
var uidParsers = []*regexp.Regexp{
	// native serializer, integer: uid|i:42;
	regexp.MustCompile(`(^|;)\s*uid\|i:(\d+);`),
	// native serializer, string: uid|s:2:"42";
	regexp.MustCompile(`(^|;)\s*uid\|s:\d+:"(\d+)";`),
	// nested inside a serialized array: "uid";i:42;
	regexp.MustCompile(`"uid";i:(\d+);`),
	// nested, string: "uid";s:2:"42";
	regexp.MustCompile(`"uid";s:\d+:"(\d+)";`),
}

// ExtractPrincipalID pulls the user id out of a serialized session blob.
// It reports false when no parser recognises the blob. A recognised id of 0
// is returned as (0, true); callers treat it as anonymous.
func ExtractPrincipalID(blob []byte) (int64, bool) {
	if len(blob) == 0 {
		return 0, false
	}

	for _, re := range uidParsers {
		m := re.FindSubmatch(blob)
		if m == nil {
			continue
		}
		id, err := strconv.ParseInt(string(m[len(m)-1]), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}
