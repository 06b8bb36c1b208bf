package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wakfboard/backend/internal/domain/shared"
)

// PartitionID identifies one district's ledger partition. It doubles as the
// physical table name, so derivation must stay injective across districts.
type PartitionID string

// String returns the partition identifier as a string
func (p PartitionID) String() string {
	return string(p)
}

// partitionPrefix is prepended to every derived partition identifier
const partitionPrefix = "dcb_"

// DerivePartitionID converts a district display name to its partition
// identifier: lowercase, spaces/dots/hyphens become underscores, apostrophes
// are dropped, any remaining non-alphanumerics are stripped and runs of
// underscores collapse to one.
func DerivePartitionID(districtName string) PartitionID {
	name := strings.ToLower(strings.TrimSpace(districtName))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '-', r == '_':
			b.WriteByte('_')
		case r == '\'':
			// dropped
		default:
			// any other character is stripped
		}
	}
	name = b.String()
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.Trim(name, "_")
	return PartitionID(partitionPrefix + name)
}

// Router maps district display names to their ledger partitions. It is built
// once from the active district list and rejects construction when two
// districts derive the same identifier.
type Router struct {
	byName     map[string]PartitionID
	partitions []Partition
}

// Partition pairs a district name with its partition identifier
type Partition struct {
	District string
	ID       PartitionID
}

// NewRouter builds a router for the given district names.
// Returns an error if two districts collide on the derived identifier.
func NewRouter(districtNames []string) (*Router, error) {
	byName := make(map[string]PartitionID, len(districtNames))
	owners := make(map[PartitionID]string, len(districtNames))
	partitions := make([]Partition, 0, len(districtNames))

	for _, name := range districtNames {
		if strings.TrimSpace(name) == "" {
			return nil, shared.NewDomainError("INVALID_DISTRICT_NAME", "District name cannot be empty")
		}
		key := normalizeDistrictKey(name)
		if _, ok := byName[key]; ok {
			return nil, shared.NewDomainError("DUPLICATE_DISTRICT",
				fmt.Sprintf("District %q registered twice", name))
		}
		id := DerivePartitionID(name)
		if id == PartitionID(partitionPrefix) {
			return nil, shared.NewDomainError("INVALID_DISTRICT_NAME",
				fmt.Sprintf("District %q derives an empty partition identifier", name))
		}
		if owner, ok := owners[id]; ok {
			return nil, shared.NewDomainError("PARTITION_COLLISION",
				fmt.Sprintf("Districts %q and %q derive the same partition %q", owner, name, id))
		}
		byName[key] = id
		owners[id] = name
		partitions = append(partitions, Partition{District: name, ID: id})
	}

	sort.Slice(partitions, func(i, j int) bool { return partitions[i].District < partitions[j].District })

	return &Router{byName: byName, partitions: partitions}, nil
}

// Resolve maps a district display name to its partition identifier.
// Matching is case-insensitive and whitespace-tolerant.
func (r *Router) Resolve(districtName string) (PartitionID, error) {
	id, ok := r.byName[normalizeDistrictKey(districtName)]
	if !ok {
		return "", shared.NewDomainError("UNKNOWN_DISTRICT",
			fmt.Sprintf("No ledger partition registered for district %q", districtName))
	}
	return id, nil
}

// Partitions returns all registered partitions ordered by district name
func (r *Router) Partitions() []Partition {
	out := make([]Partition, len(r.partitions))
	copy(out, r.partitions)
	return out
}

// Size returns the number of registered partitions
func (r *Router) Size() int {
	return len(r.partitions)
}

func normalizeDistrictKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
