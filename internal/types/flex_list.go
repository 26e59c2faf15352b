// flex_list.go
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

package types

import (
	"encoding/json"
)

// FlexList is a list of strings that can be unmarshaled from either a JSON array
// or a single scalar. Elements follow FlexString rules, so ["db", 5] becomes
// ["db", "5"]. Null elements are dropped.
type FlexList []string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *FlexList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = nil
		return nil
	}

	if data[0] == '[' {
		var items []*FlexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make(FlexList, 0, len(items))
		for _, item := range items {
			if item == nil {
				continue
			}
			out = append(out, item.String())
		}
		*f = out
		return nil
	}

	// A lone scalar is a one element list
	var item FlexString
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*f = FlexList{item.String()}
	return nil
}

// Strings converts FlexList back to []string.
func (f FlexList) Strings() []string {
	return []string(f)
}
