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

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/osdev-course/blockfs/internal/blockfserr"
)

// FileDevice backs a Device with a single regular file, one sector per
// fixed-size slot, addressed with pread/pwrite so concurrent callers never
// need to coordinate a shared file offset.
type FileDevice struct {
	f          *os.File
	sectorSize int
	numSectors uint32
}

var _ Device = (*FileDevice)(nil)

// CreateFileDevice creates (or truncates) a backing image file of exactly
// sectorSize*numSectors bytes.
func CreateFileDevice(path string, sectorSize int, numSectors uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, blockfserr.Wrap("device.CreateFileDevice", blockfserr.IoError, err)
	}

	size := int64(sectorSize) * int64(numSectors)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, blockfserr.Wrap("device.CreateFileDevice", blockfserr.IoError, err)
	}

	return &FileDevice{f: f, sectorSize: sectorSize, numSectors: numSectors}, nil
}

// OpenFileDevice opens an existing image file previously made with
// CreateFileDevice.
func OpenFileDevice(path string, sectorSize int) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, blockfserr.Wrap("device.OpenFileDevice", blockfserr.IoError, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, blockfserr.Wrap("device.OpenFileDevice", blockfserr.IoError, err)
	}
	if info.Size()%int64(sectorSize) != 0 {
		f.Close()
		return nil, blockfserr.New("device.OpenFileDevice", blockfserr.IoError)
	}

	return &FileDevice{
		f:          f,
		sectorSize: sectorSize,
		numSectors: uint32(info.Size() / int64(sectorSize)),
	}, nil
}

func (d *FileDevice) SectorSize() int    { return d.sectorSize }
func (d *FileDevice) NumSectors() uint32 { return d.numSectors }

func (d *FileDevice) ReadSector(id SectorID, dst []byte) error {
	if err := checkLen("device.ReadSector", dst, d.sectorSize); err != nil {
		return err
	}
	if err := checkBounds("device.ReadSector", id, d.numSectors); err != nil {
		return err
	}

	off := int64(id) * int64(d.sectorSize)
	n, err := unix.Pread(int(d.f.Fd()), dst, off)
	if err != nil {
		return blockfserr.Wrap("device.ReadSector", blockfserr.IoError, err)
	}
	if n != d.sectorSize {
		return blockfserr.Wrap("device.ReadSector", blockfserr.IoError,
			fmt.Errorf("short read: got %d of %d bytes", n, d.sectorSize))
	}
	return nil
}

func (d *FileDevice) WriteSector(id SectorID, src []byte) error {
	if err := checkLen("device.WriteSector", src, d.sectorSize); err != nil {
		return err
	}
	if err := checkBounds("device.WriteSector", id, d.numSectors); err != nil {
		return err
	}

	off := int64(id) * int64(d.sectorSize)
	n, err := unix.Pwrite(int(d.f.Fd()), src, off)
	if err != nil {
		return blockfserr.Wrap("device.WriteSector", blockfserr.IoError, err)
	}
	if n != d.sectorSize {
		return blockfserr.Wrap("device.WriteSector", blockfserr.IoError,
			fmt.Errorf("short write: wrote %d of %d bytes", n, d.sectorSize))
	}
	return nil
}

func (d *FileDevice) Close() error {
	if err := d.f.Close(); err != nil {
		return blockfserr.Wrap("device.Close", blockfserr.IoError, err)
	}
	return nil
}
