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

package inode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osdev-course/blockfs/internal/blockfserr"
)

func TestComputeBudgetReferenceGeometry(t *testing.T) {
	g := DefaultGeometry // Nd=10, Ni=125, Nd2=125

	b, err := computeBudget(g, 0)
	require.NoError(t, err)
	require.Equal(t, sectorBudget{}, b)

	b, err = computeBudget(g, 5)
	require.NoError(t, err)
	require.Equal(t, sectorBudget{direct: 5}, b)

	b, err = computeBudget(g, g.Nd+50)
	require.NoError(t, err)
	require.Equal(t, sectorBudget{direct: g.Nd, indirect: 50}, b)

	b, err = computeBudget(g, g.Nd+g.Ni+1)
	require.NoError(t, err)
	require.Equal(t, sectorBudget{direct: g.Nd, indirect: g.Ni, dbl: 0, remain: 1}, b)

	b, err = computeBudget(g, g.MaxSectors())
	require.NoError(t, err)
	require.Equal(t, sectorBudget{direct: g.Nd, indirect: g.Ni, dbl: g.Nd2, remain: 0}, b)

	_, err = computeBudget(g, g.MaxSectors()+1)
	require.Error(t, err)
	require.True(t, blockfserr.Is(err, blockfserr.TooLarge))
}

func TestMaxFileSizeMatchesReferenceParameters(t *testing.T) {
	g := DefaultGeometry
	require.Equal(t, 10+125+125*125, g.MaxSectors())
	require.EqualValues(t, int64(g.MaxSectors())*512, g.MaxFileSize())
}
