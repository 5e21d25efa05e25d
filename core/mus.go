// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the stored domain types. Field order is
// part of the wire format and must not change between releases.
var (
	IDMUS          = idMUS{}
	KindMUS        = kindMUS{}
	ContentItemMUS = contentItemMUS{}
)

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (ID, int, error) {
	u, n, err := varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (s idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (s idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type kindMUS struct{}

func (s kindMUS) Marshal(v Kind, bs []byte) int {
	return varint.Int.Marshal(int(v), bs)
}

func (s kindMUS) Unmarshal(bs []byte) (Kind, int, error) {
	i, n, err := varint.Int.Unmarshal(bs)
	return Kind(i), n, err
}

func (s kindMUS) Size(v Kind) int {
	return varint.Int.Size(int(v))
}

func (s kindMUS) Skip(bs []byte) (int, error) {
	return varint.Int.Skip(bs)
}

// timeMicroMUS serializes a time.Time as UnixMicro. The zero time is stored
// as 0 and restored as the zero time.
type timeMicroMUS struct{}

func (s timeMicroMUS) Marshal(v time.Time, bs []byte) int {
	var micros int64
	if !v.IsZero() {
		micros = v.UnixMicro()
	}
	return varint.Int64.Marshal(micros, bs)
}

func (s timeMicroMUS) Unmarshal(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || micros == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func (s timeMicroMUS) Size(v time.Time) int {
	var micros int64
	if !v.IsZero() {
		micros = v.UnixMicro()
	}
	return varint.Int64.Size(micros)
}

func (s timeMicroMUS) Skip(bs []byte) (int, error) {
	return varint.Int64.Skip(bs)
}

type stringSliceMUS struct{}

func (s stringSliceMUS) Marshal(v []string, bs []byte) int {
	n := varint.Int.Marshal(len(v), bs)
	for _, e := range v {
		n += ord.String.Marshal(e, bs[n:])
	}
	return n
}

func (s stringSliceMUS) Unmarshal(bs []byte) ([]string, int, error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v := make([]string, length)
	for i := range v {
		var ln int
		v[i], ln, err = ord.String.Unmarshal(bs[n:])
		n += ln
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (s stringSliceMUS) Size(v []string) int {
	size := varint.Int.Size(len(v))
	for _, e := range v {
		size += ord.String.Size(e)
	}
	return size
}

type vectorMUS struct{}

func (s vectorMUS) Marshal(v []float32, bs []byte) int {
	n := varint.Int.Marshal(len(v), bs)
	for _, e := range v {
		n += varint.Float32.Marshal(e, bs[n:])
	}
	return n
}

func (s vectorMUS) Unmarshal(bs []byte) ([]float32, int, error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil || length == 0 {
		return nil, n, err
	}
	v := make([]float32, length)
	for i := range v {
		var ln int
		v[i], ln, err = varint.Float32.Unmarshal(bs[n:])
		n += ln
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func (s vectorMUS) Size(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, e := range v {
		size += varint.Float32.Size(e)
	}
	return size
}

type contentItemMUS struct{}

var (
	timeMUS    = timeMicroMUS{}
	stringsMUS = stringSliceMUS{}
	floatsMUS  = vectorMUS{}
)

func (s contentItemMUS) Marshal(v ContentItem, bs []byte) int {
	n := IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(string(v.Owner), bs[n:])
	n += KindMUS.Marshal(v.Kind, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Body, bs[n:])
	n += ord.String.Marshal(v.URL, bs[n:])
	n += stringsMUS.Marshal(v.Tags, bs[n:])
	n += ord.Bool.Marshal(v.Completed, bs[n:])
	n += timeMUS.Marshal(v.CreatedAt, bs[n:])
	n += timeMUS.Marshal(v.UpdatedAt, bs[n:])
	n += timeMUS.Marshal(v.DueAt, bs[n:])
	n += varint.Int64.Marshal(v.ContentVersion, bs[n:])
	n += floatsMUS.Marshal(v.Vector, bs[n:])
	n += varint.Int64.Marshal(v.VectorVersion, bs[n:])
	return n
}

func (s contentItemMUS) Unmarshal(bs []byte) (v ContentItem, n int, err error) {
	var ln int
	if v.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	var owner string
	if owner, ln, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	v.Owner = OwnerID(owner)
	n += ln
	if v.Kind, ln, err = KindMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.Title, ln, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.Body, ln, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.URL, ln, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.Tags, ln, err = stringsMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.Completed, ln, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.CreatedAt, ln, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.UpdatedAt, ln, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.DueAt, ln, err = timeMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.ContentVersion, ln, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.Vector, ln, err = floatsMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	if v.VectorVersion, ln, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + ln, err
	}
	n += ln
	return v, n, nil
}

func (s contentItemMUS) Size(v ContentItem) int {
	size := IDMUS.Size(v.Id)
	size += ord.String.Size(string(v.Owner))
	size += KindMUS.Size(v.Kind)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Body)
	size += ord.String.Size(v.URL)
	size += stringsMUS.Size(v.Tags)
	size += ord.Bool.Size(v.Completed)
	size += timeMUS.Size(v.CreatedAt)
	size += timeMUS.Size(v.UpdatedAt)
	size += timeMUS.Size(v.DueAt)
	size += varint.Int64.Size(v.ContentVersion)
	size += floatsMUS.Size(v.Vector)
	size += varint.Int64.Size(v.VectorVersion)
	return size
}
