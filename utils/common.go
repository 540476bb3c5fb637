// Copyright (C) 2025 Tim Bastin, l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package utils

import "gorm.io/gorm"

func SafeDereference(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Tabler is implemented by every database model.
type Tabler interface {
	TableName() string
}

// Repository is the common persistence surface the generic gorm repository
// satisfies. TX is *gorm.DB everywhere; it is a type parameter only to keep
// the model packages free of a gorm import cycle.
type Repository[ID comparable, T Tabler, TX any] interface {
	All() ([]T, error)
	Read(id ID) (T, error)
	Create(tx TX, t *T) error
	CreateBatch(tx TX, ts []T) error
	Save(tx TX, t *T) error
	SaveBatch(tx TX, ts []T) error
	Delete(tx TX, id ID) error
	Transaction(func(tx TX) error) error
	Begin() TX
	GetDB(tx TX) *gorm.DB
}
