package protoreg

import (
	"hash/fnv"
	"sort"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Tag numbers come from the names, so adding a shape field never renumbers
// the fields already published. The FNV-1a hash of a name picks a number in
// 1..maxTag, the block protobuf reserves is skipped, and collisions probe
// upward with wrap-around. Names are placed in sorted order, which keeps the
// outcome independent of declaration order.
const (
	maxTag        = 31767
	reservedFirst = 19000
	reservedLast  = 19999
)

func allocateFieldNumbers(fbs []*protobuilder.FieldBuilder) {
	names := make([]string, len(fbs))
	for i, fb := range fbs {
		names[i] = string(fb.Name())
	}
	for i, n := range hashedNumbers(names) {
		fbs[i].SetNumber(protoreflect.FieldNumber(n))
	}
}

// allocateEnumValueNumbers numbers enum values the same way. Zero is never
// produced; enums get their zero value from the UNSPECIFIED entry.
func allocateEnumValueNumbers(evbs []*protobuilder.EnumValueBuilder) {
	names := make([]string, len(evbs))
	for i, evb := range evbs {
		names[i] = string(evb.Name())
	}
	for i, n := range hashedNumbers(names) {
		evbs[i].SetNumber(protoreflect.EnumNumber(n))
	}
}

func hashedNumbers(names []string) []int {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return names[order[a]] < names[order[b]] })

	out := make([]int, len(names))
	used := make(map[int]bool, len(names))
	for _, i := range order {
		h := fnv.New32a()
		_, _ = h.Write([]byte(names[i]))
		n := int(h.Sum32()%maxTag) + 1
		for probes := 0; ; probes++ {
			if probes > maxTag {
				panic("protoreg: tag space exhausted")
			}
			if n >= reservedFirst && n <= reservedLast {
				n = reservedLast + 1
			}
			if !used[n] {
				break
			}
			n = n%maxTag + 1
		}
		used[n] = true
		out[i] = n
	}
	return out
}
