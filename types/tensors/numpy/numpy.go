// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package numpy reads and writes tensors in NumPy's npy and npz file formats.
//
// It covers the subset needed to exchange pooling inputs and results with Python:
// little-endian numeric dtypes, C-order or Fortran-order layout on read, npy
// versions 1.0 and 2.0. Files are always written as version 1.0, C-order,
// little-endian. An npz archive is a zip file of npy entries, exposed here as a map
// from tensor name to tensor.
package numpy

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/segments/types/shapes"
	"github.com/gomlx/segments/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const npyMagic = "\x93NUMPY"

// maxNpyHeaderLen caps the accepted header size: real headers are well under 1kB,
// anything larger indicates a corrupt or hostile file.
const maxNpyHeaderLen = 1 << 20

// FromNpyFile reads a .npy file and returns its contents as a tensor.
func FromNpyFile(filePath string) (*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open npy file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	return FromNpyReader(file)
}

// FromNpyReader reads one npy-encoded tensor from r.
//
// Fortran-order (column-major) files are transposed into the row-major layout the
// tensors package uses. Big-endian files are rejected.
func FromNpyReader(r io.Reader) (*tensors.Tensor, error) {
	var preamble [8]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, errors.Wrapf(err, "failed to read npy preamble")
	}
	if string(preamble[:6]) != npyMagic {
		return nil, errors.Errorf("not an npy file: bad magic string %q", preamble[:6])
	}

	// Version 1.0 carries the header length in 2 bytes, 2.0 and later in 4.
	var headerLen int
	switch major := preamble[6]; {
	case major == 1:
		var lenBytes [2]byte
		if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
			return nil, errors.Wrapf(err, "failed to read npy header length")
		}
		headerLen = int(binary.LittleEndian.Uint16(lenBytes[:]))
	case major >= 2:
		var lenBytes [4]byte
		if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
			return nil, errors.Wrapf(err, "failed to read npy header length")
		}
		headerLen = int(binary.LittleEndian.Uint32(lenBytes[:]))
		if headerLen > maxNpyHeaderLen {
			return nil, errors.Errorf("implausible npy header length %d", headerLen)
		}
	default:
		return nil, errors.Errorf("unsupported npy version %d.%d", preamble[6], preamble[7])
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, errors.Wrapf(err, "failed to read npy header")
	}
	descr, dims, fortranOrder, err := parseNpyHeader(string(headerBytes))
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(descr, ">") {
		return nil, errors.Errorf("big-endian npy data (%q) is not supported", descr)
	}
	dtype, err := dtypeFromNpyDescr(descr)
	if err != nil {
		return nil, err
	}
	shape := shapes.Make(dtype, dims...)

	t := tensors.FromShape(shape)
	if !fortranOrder || shape.Rank() <= 1 {
		var readErr error
		t.MutableBytes(func(data []byte) {
			_, readErr = io.ReadFull(r, data)
		})
		if readErr != nil {
			t.Finalize()
			return nil, errors.Wrapf(readErr, "failed to read data for tensor shaped %s", shape)
		}
		return t, nil
	}

	// Fortran-order: read the raw bytes aside and transpose them into the tensor.
	fortranData := make([]byte, shape.Size()*dtype.Size())
	if _, err = io.ReadFull(r, fortranData); err != nil {
		t.Finalize()
		return nil, errors.Wrapf(err, "failed to read data for tensor shaped %s", shape)
	}
	t.MutableBytes(func(data []byte) {
		fortranToCLayout(dtype.Size(), shape.Dimensions, fortranData, data)
	})
	return t, nil
}

// fortranToCLayout copies column-major element bytes into the row-major layout.
// Both buffers must hold exactly the product of dims elements of dtypeSize bytes.
func fortranToCLayout(dtypeSize int, dims []int, fortranData, cData []byte) {
	numElements := len(cData) / dtypeSize
	coords := make([]int, len(dims))
	for cIdx := range numElements {
		// Decompose the row-major index into coordinates.
		rest := cIdx
		for axis := len(dims) - 1; axis >= 0; axis-- {
			coords[axis] = rest % dims[axis]
			rest /= dims[axis]
		}
		// Recompose the coordinates as a column-major index.
		fortranIdx := 0
		stride := 1
		for axis, dim := range dims {
			fortranIdx += coords[axis] * stride
			stride *= dim
		}
		copy(cData[cIdx*dtypeSize:(cIdx+1)*dtypeSize],
			fortranData[fortranIdx*dtypeSize:(fortranIdx+1)*dtypeSize])
	}
}

var (
	reNpyDescr        = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	reNpyFortranOrder = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	reNpyShape        = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// parseNpyHeader extracts the dtype descriptor, the dimensions and the memory order
// from the Python-dict header of an npy file, e.g.
// "{'descr': '<f4', 'fortran_order': False, 'shape': (2, 3), }".
func parseNpyHeader(header string) (descr string, dims []int, fortranOrder bool, err error) {
	m := reNpyDescr.FindStringSubmatch(header)
	if len(m) < 2 {
		return "", nil, false, errors.Errorf("npy header has no 'descr' entry: %q", header)
	}
	descr = m[1]

	m = reNpyFortranOrder.FindStringSubmatch(header)
	if len(m) < 2 {
		return "", nil, false, errors.Errorf("npy header has no 'fortran_order' entry: %q", header)
	}
	fortranOrder = m[1] == "True"

	m = reNpyShape.FindStringSubmatch(header)
	if len(m) < 2 {
		return "", nil, false, errors.Errorf("npy header has no 'shape' entry: %q", header)
	}
	// "()" is a scalar; "(3,)" has a trailing comma; "(2, 3)" does not.
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, atoiErr := strconv.Atoi(part)
		if atoiErr != nil {
			return "", nil, false, errors.Wrapf(atoiErr, "invalid dimension %q in npy header shape", part)
		}
		dims = append(dims, dim)
	}
	return descr, dims, fortranOrder, nil
}

var npyDescrToDType = map[string]dtypes.DType{
	"?":   dtypes.Bool,
	"b1":  dtypes.Bool,
	"i1":  dtypes.Int8,
	"u1":  dtypes.Uint8,
	"i2":  dtypes.Int16,
	"u2":  dtypes.Uint16,
	"i4":  dtypes.Int32,
	"u4":  dtypes.Uint32,
	"i8":  dtypes.Int64,
	"u8":  dtypes.Uint64,
	"f2":  dtypes.Float16,
	"f4":  dtypes.Float32,
	"f8":  dtypes.Float64,
	"c8":  dtypes.Complex64,
	"c16": dtypes.Complex128,
}

// dtypeFromNpyDescr resolves a NumPy dtype descriptor like "<f4" to a DType,
// ignoring a leading little-endian or not-applicable byte order mark.
func dtypeFromNpyDescr(descr string) (dtypes.DType, error) {
	trimmed := descr
	if len(trimmed) > 0 && (trimmed[0] == '<' || trimmed[0] == '=' || trimmed[0] == '|') {
		trimmed = trimmed[1:]
	}
	if dtype, found := npyDescrToDType[trimmed]; found {
		return dtype, nil
	}
	return dtypes.InvalidDType, errors.Errorf("unsupported npy dtype %q", descr)
}

var dtypeToNpyDescr = map[dtypes.DType]string{
	dtypes.Bool:       "|b1",
	dtypes.Int8:       "<i1",
	dtypes.Uint8:      "<u1",
	dtypes.Int16:      "<i2",
	dtypes.Uint16:     "<u2",
	dtypes.Int32:      "<i4",
	dtypes.Uint32:     "<u4",
	dtypes.Int64:      "<i8",
	dtypes.Uint64:     "<u8",
	dtypes.Float16:    "<f2",
	dtypes.Float32:    "<f4",
	dtypes.Float64:    "<f8",
	dtypes.Complex64:  "<c8",
	dtypes.Complex128: "<c16",
}

func npyDescrFromDType(dtype dtypes.DType) (string, error) {
	if descr, found := dtypeToNpyDescr[dtype]; found {
		return descr, nil
	}
	// Notably BFloat16: NumPy has no standard descriptor for it.
	return "", errors.Errorf("dtype %s has no npy encoding", dtype)
}

// ToNpyFile writes the tensor to filePath in npy format.
func ToNpyFile(t *tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create npy file %q", filePath)
	}
	if err = ToNpyWriter(t, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "failed to close npy file %q", filePath)
}

// ToNpyWriter writes the tensor to w in npy format, version 1.0, C-order,
// little-endian.
func ToNpyWriter(t *tensors.Tensor, w io.Writer) error {
	shape := t.Shape()
	descr, err := npyDescrFromDType(shape.DType)
	if err != nil {
		return err
	}

	var shapeTuple string
	switch shape.Rank() {
	case 0:
		shapeTuple = "()"
	case 1:
		shapeTuple = fmt.Sprintf("(%d,)", shape.Dimensions[0])
	default:
		dims := make([]string, shape.Rank())
		for axis, dim := range shape.Dimensions {
			dims[axis] = strconv.Itoa(dim)
		}
		shapeTuple = fmt.Sprintf("(%s)", strings.Join(dims, ", "))
	}

	var header bytes.Buffer
	fmt.Fprintf(&header, "{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shapeTuple)
	// The preamble (8 bytes), the length field (2 bytes in version 1.0), the header
	// and its terminating newline must add up to a multiple of 16 bytes.
	for (10+header.Len()+1)%16 != 0 {
		header.WriteByte(' ')
	}
	header.WriteByte('\n')

	if _, err = w.Write([]byte(npyMagic)); err != nil {
		return errors.Wrapf(err, "failed to write npy magic string")
	}
	if _, err = w.Write([]byte{1, 0}); err != nil {
		return errors.Wrapf(err, "failed to write npy version")
	}
	var lenBytes [2]byte
	binary.LittleEndian.PutUint16(lenBytes[:], uint16(header.Len()))
	if _, err = w.Write(lenBytes[:]); err != nil {
		return errors.Wrapf(err, "failed to write npy header length")
	}
	if _, err = w.Write(header.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write npy header")
	}

	var writeErr error
	t.ConstBytes(func(data []byte) {
		_, writeErr = w.Write(data)
	})
	return errors.Wrapf(writeErr, "failed to write tensor data")
}

// FromNpzFile reads an npz archive and returns its tensors keyed by name.
func FromNpzFile(filePath string) (map[string]*tensors.Tensor, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open npz file %q", filePath)
	}
	defer func() { _ = file.Close() }()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat npz file %q", filePath)
	}
	return FromNpzReader(file, info.Size())
}

// FromNpzReader reads an npz archive from r. Since npz files are zip archives, it
// needs random access (io.ReaderAt) and the total size.
func FromNpzReader(r io.ReaderAt, size int64) (map[string]*tensors.Tensor, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(err, "npz files are zip archives, failed to open as one")
	}
	result := make(map[string]*tensors.Tensor, len(zipReader.File))
	for _, entry := range zipReader.File {
		cleanPath := path.Clean(entry.Name)
		if path.IsAbs(cleanPath) || strings.HasPrefix(cleanPath, "..") {
			return nil, errors.Errorf("npz archive entry %q escapes the archive", entry.Name)
		}
		if !strings.HasSuffix(entry.Name, ".npy") {
			// Archives may carry metadata entries alongside the tensors.
			klog.V(1).Infof("Ignoring non-npy entry %q in npz archive", entry.Name)
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %q in npz archive", entry.Name)
		}
		tensor, err := FromNpyReader(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to read tensor %q from npz archive", entry.Name)
		}
		result[strings.TrimSuffix(entry.Name, ".npy")] = tensor
	}
	return result, nil
}

// ToNpzFile writes the named tensors to filePath as an npz archive.
func ToNpzFile(tensorsMap map[string]*tensors.Tensor, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to create npz file %q", filePath)
	}
	if err = ToNpzWriter(tensorsMap, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "failed to close npz file %q", filePath)
}

// ToNpzWriter writes the named tensors to w as an npz archive. Entries are written
// in sorted name order, so the same map always produces the same bytes.
func ToNpzWriter(tensorsMap map[string]*tensors.Tensor, w io.Writer) error {
	zipWriter := zip.NewWriter(w)
	for _, name := range slices.Sorted(maps.Keys(tensorsMap)) {
		npyName := name + ".npy"
		entry, err := zipWriter.Create(npyName)
		if err != nil {
			return errors.Wrapf(err, "failed to create %q in npz archive", npyName)
		}
		if err = ToNpyWriter(tensorsMap[name], entry); err != nil {
			return errors.WithMessagef(err, "failed to write tensor %q to npz archive", name)
		}
	}
	return errors.Wrapf(zipWriter.Close(), "failed to close npz archive")
}
