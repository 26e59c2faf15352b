// common.go
//
// A port reservation registry for fleets of cooperating processes
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of portsmith.
// portsmith is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// portsmith is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with portsmith.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/portsmith/internal/middleware"
	"github.com/localnerve/portsmith/internal/store"
	"github.com/localnerve/portsmith/internal/types"
	"github.com/localnerve/portsmith/internal/utils"
)

// reservationBody is the body of POST, PUT and reserve_next:
// {"properties": {name: value}, "tags": [text]}
// A null property value leaves the property unset.
type reservationBody struct {
	Properties map[string]*types.FlexString `json:"properties"`
	Tags       types.FlexList               `json:"tags"`
}

func (b reservationBody) data() store.Data {
	data := store.Data{Tags: b.Tags.Strings()}
	if len(b.Properties) > 0 {
		data.Properties = make(map[string]string, len(b.Properties))
		for name, value := range b.Properties {
			if value == nil {
				continue
			}
			data.Properties[name] = value.String()
		}
	}
	return data
}

// patchBody is the body of PATCH:
// {"properties": {name: value|null}, "tags": {"added": [text], "removed": [text]}}
type patchBody struct {
	Properties map[string]*types.FlexString `json:"properties"`
	Tags       struct {
		Added   types.FlexList `json:"added"`
		Removed types.FlexList `json:"removed"`
	} `json:"tags"`
}

func (b patchBody) patch() store.Patch {
	patch := store.Patch{
		AddTags:    b.Tags.Added.Strings(),
		RemoveTags: b.Tags.Removed.Strings(),
	}
	if len(b.Properties) > 0 {
		patch.Properties = make(map[string]*string, len(b.Properties))
		for name, value := range b.Properties {
			if value == nil {
				patch.Properties[name] = nil
				continue
			}
			s := value.String()
			patch.Properties[name] = &s
		}
	}
	return patch
}

// parsePort reads the :port path parameter
func parsePort(c *fiber.Ctx) (int, error) {
	port, err := c.ParamsInt("port")
	if err != nil {
		return 0, fmt.Errorf("%w: port %q is not a number", types.ErrMalformedInput, c.Params("port"))
	}
	return port, nil
}

// decodeBody unmarshals a JSON request body into v. An empty body leaves v untouched.
// The Content-Type header is not consulted; clients of the registry rarely send one.
func decodeBody(c *fiber.Ctx, v interface{}) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return nil
	}
	if err := c.App().Config().JSONDecoder(body, v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedInput, err)
	}
	return nil
}

// decodeOptionalBody is decodeBody for bodies that may be omitted: anything that does not
// decode is logged and treated as {}.
func decodeOptionalBody(c *fiber.Ctx) reservationBody {
	var body reservationBody
	if err := decodeBody(c, &body); err != nil {
		log.Printf("Ignoring request body for %s %s: %v", c.Method(), c.OriginalURL(), err)
		return reservationBody{}
	}
	return body
}

// parseTags extracts the repeated 'tag' query parameters in request order.
// Repeats of the same tag are dropped; commas are part of the tag text.
func parseTags(c *fiber.Ctx) []string {
	seen := make(map[string]struct{})
	var tags []string

	args := c.Context().QueryArgs()
	for key, value := range args.All() {
		if string(key) != "tag" {
			continue
		}
		tag := string(value)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	return tags
}

// respondError maps a service error onto the error envelope
func respondError(c *fiber.Ctx, err error, operation string) error {
	switch {
	case errors.Is(err, types.ErrMalformedInput):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusBadRequest, "data.validation.input")
	case errors.Is(err, types.ErrNotReserved):
		return utils.NotFoundResponse(c, "Port not reserved")
	case errors.Is(err, types.ErrAlreadyReserved):
		return utils.ConflictResponse(c, "Port already reserved")
	case errors.Is(err, types.ErrRangeExhausted):
		return utils.UnavailableResponse(c, "No unreserved port left in range")
	case errors.Is(err, types.ErrStorage):
		log.Printf("[%s] %s failed: %v", middleware.RequestID(c), operation, err)
		return utils.ErrorResponse(c, "Storage failure", fiber.StatusInternalServerError, operation)
	default:
		return err
	}
}
