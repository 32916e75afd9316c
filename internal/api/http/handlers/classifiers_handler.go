package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/Jessir1108/Capta-Tickets/internal/api/dto"
	"github.com/Jessir1108/Capta-Tickets/internal/classifier"
	apperrors "github.com/Jessir1108/Capta-Tickets/pkg/util"
)

// ClassifierResolver resolves and invalidates classifier subtrees.
type ClassifierResolver interface {
	Descendants(ctx context.Context, nodeID string) ([]string, error)
	Invalidate(ctx context.Context) error
	Tree(ctx context.Context) (*classifier.Tree, error)
}

// ClassifiersHandler exposes the classifier hierarchy.
type ClassifiersHandler struct {
	resolver ClassifierResolver
}

// NewClassifiersHandler constructs handler.
func NewClassifiersHandler(resolver ClassifierResolver) *ClassifiersHandler {
	return &ClassifiersHandler{resolver: resolver}
}

// Tree GET /v1/classifiers. A parent relation that is not a forest answers
// 422 INCONSISTENT_STATE.
func (h *ClassifiersHandler) Tree(c *fiber.Ctx) error {
	tree, err := h.resolver.Tree(c.UserContext())
	if err != nil {
		if classifier.IsTopologyError(err) {
			return apperrors.NewDomainError(apperrors.CodeInconsistentState, "classifier hierarchy is not a forest",
				fiber.StatusUnprocessableEntity, map[string]any{"reason": err.Error()})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewClassifierTreeResponse(tree)})
}

// Descendants GET /v1/classifiers/:id/descendants. Unknown ids resolve to
// themselves.
func (h *ClassifiersHandler) Descendants(c *fiber.Ctx) error {
	id := c.Params("id")
	ids, err := h.resolver.Descendants(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DescendantsResponse{NodeID: id, Descendants: ids}})
}

// InvalidateCache POST /v1/classifiers/cache/invalidate.
func (h *ClassifiersHandler) InvalidateCache(c *fiber.Ctx) error {
	if err := h.resolver.Invalidate(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
