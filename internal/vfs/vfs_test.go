// Copyright 2025 Google LLC
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

package vfs

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/osdev-course/blockfs/internal/bcache"
	"github.com/osdev-course/blockfs/internal/device"
	"github.com/osdev-course/blockfs/internal/freemap"
	"github.com/osdev-course/blockfs/internal/inode"
)

type vfsSuite struct {
	suite.Suite
	fs *FS
}

func (s *vfsSuite) SetupTest() {
	dev := device.NewMemDevice(512, 4096)
	cache := bcache.New(dev, 64, nil, 0, nil)
	fm := freemap.New(4096, 1)
	table := inode.NewTable(inode.DefaultGeometry, cache, fm)
	s.fs = New(table)
}

func TestVFSSuite(t *testing.T) {
	suite.Run(t, new(vfsSuite))
}

func (s *vfsSuite) TestCreateWriteReadRoundTrip() {
	oi, err := s.fs.CreateFile(100)
	s.Require().NoError(err)

	n, err := s.fs.WriteFile(oi, 0, []byte("hello"))
	s.Require().NoError(err)
	s.Equal(5, n)

	out := make([]byte, 5)
	n, err = s.fs.ReadFile(oi, 0, out)
	require.NoError(s.T(), err)
	s.Equal(5, n)
	s.Equal("hello", string(out))
	s.Equal(int64(100), oi.Length())
}

func (s *vfsSuite) TestUnlinkThenCloseFreesSectors() {
	oi, err := s.fs.CreateFile(5000)
	s.Require().NoError(err)

	s.Require().NoError(s.fs.Unlink(oi))
	s.Require().NoError(s.fs.Close(oi))

	// A freshly re-created file at a new sector should succeed without
	// running out of space, showing the old tree's sectors came back.
	_, err = s.fs.CreateFile(5000)
	s.Require().NoError(err)
}

func (s *vfsSuite) TestLookupSharesOneHandle() {
	created, err := s.fs.CreateFile(10)
	s.Require().NoError(err)
	s.Require().NoError(s.fs.Close(created))

	a, err := s.fs.Lookup(created.Sector())
	s.Require().NoError(err)
	b, err := s.fs.Lookup(created.Sector())
	s.Require().NoError(err)
	s.Same(a, b)

	s.Require().NoError(s.fs.Close(a))
	s.Require().NoError(s.fs.Close(b))
}
