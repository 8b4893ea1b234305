package auth

import "context"

// OwnerExtractor reports the owning principal id of a resource instance.
// Each resource type (property, booking, review) registers its own
// extractor since the owner field differs per entity.
type OwnerExtractor func(ctx context.Context, resourceID string) (string, error)

// OwnershipResolver decides whether a principal may act on a resource it
// may or may not own. Admin and host roles bypass the check entirely.
type OwnershipResolver struct {
	extractors map[string]OwnerExtractor
	bypass     map[UserRole]bool
}

// NewOwnershipResolver builds a resolver with the default role bypass set.
func NewOwnershipResolver() *OwnershipResolver {
	return &OwnershipResolver{
		extractors: map[string]OwnerExtractor{},
		bypass: map[UserRole]bool{
			RoleAdmin: true,
			RoleHost:  true,
		},
	}
}

// Register installs the owner extractor for a resource type tag.
func (o *OwnershipResolver) Register(resourceType string, extractor OwnerExtractor) *OwnershipResolver {
	if extractor != nil {
		o.extractors[resourceType] = extractor
	}
	return o
}

// Authorize checks whether the principal may act on the given resource.
// Bypass roles are allowed without a lookup. A resource type with no
// registered extractor is allowed through: ownership enforcement for those
// types lives with the resource handlers themselves, not here.
func (o *OwnershipResolver) Authorize(ctx context.Context, principal Principal, resourceType, resourceID string) error {
	if o.bypass[UserRole(principal.Role)] {
		return nil
	}

	extractor, ok := o.extractors[resourceType]
	if !ok {
		return nil
	}

	ownerID, err := extractor(ctx, resourceID)
	if err != nil {
		return err
	}

	if ownerID != principal.ID {
		return withMeta(ErrInsufficientPermission, map[string]any{
			"resource_type": resourceType,
			"resource_id":   resourceID,
		})
	}

	return nil
}
