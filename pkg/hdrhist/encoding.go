package hdrhist

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Block layout: a 4 byte magic, one byte each of major and minor format
// version, the compressed payload length as a uvarint, then a zlib
// stream. The payload carries lowest and highest trackable values as
// uvarints, one byte of significant figures, then the counters as zigzag
// varints where a negative entry encodes a run of that many zeros.
// Trailing zeros are omitted.
//
// Decoders accept any earlier minor revision of their own major version
// and reject everything else.
var (
	blockMagic       = [4]byte{'H', 'D', 'R', 'Z'}
	doubleBlockMagic = [4]byte{'H', 'D', 'R', 'D'}
)

const (
	blockMajorVersion = 1
	blockMinorVersion = 0
)

// EncodeCompressed returns the histogram serialized as a compressed
// binary block. Interval metadata (tag, start and end times) is not part
// of the block; the interval log carries it alongside.
func (h *Histogram) EncodeCompressed() ([]byte, error) {
	payload := binary.AppendUvarint(nil, uint64(h.lowest))
	payload = binary.AppendUvarint(payload, uint64(h.highest))
	payload = append(payload, byte(h.sigfigs))

	last := -1
	for idx := 0; idx < h.geom.countsLen; idx++ {
		if h.counts.get(idx) != 0 {
			last = idx
		}
	}
	for idx := 0; idx <= last; {
		c := h.counts.get(idx)
		if c != 0 {
			payload = binary.AppendVarint(payload, c)
			idx++
			continue
		}
		var run int64
		for idx <= last && h.counts.get(idx) == 0 {
			run++
			idx++
		}
		payload = binary.AppendVarint(payload, -run)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	out := append([]byte(nil), blockMagic[:]...)
	out = append(out, blockMajorVersion, blockMinorVersion)
	out = binary.AppendUvarint(out, uint64(compressed.Len()))
	return append(out, compressed.Bytes()...), nil
}

// checkBlockHeader validates magic and version and returns the bytes
// after the fixed header.
func checkBlockHeader(data []byte, magic [4]byte) ([]byte, error) {
	if len(data) < len(magic)+2 {
		return nil, errors.Wrap(ErrCorrupt, "block shorter than header")
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, errors.Wrap(ErrCorrupt, "bad magic")
	}
	major, minor := data[4], data[5]
	if major != blockMajorVersion {
		return nil, errors.Wrapf(ErrCorrupt, "block format %d.%d, supported major is %d", major, minor, blockMajorVersion)
	}
	if minor > blockMinorVersion {
		return nil, errors.Wrapf(ErrCorrupt, "block format %d.%d newer than supported %d.%d",
			major, minor, blockMajorVersion, blockMinorVersion)
	}
	return data[6:], nil
}

// DecodeCompressed reconstructs a histogram from a block produced by
// EncodeCompressed. Total count, min and max are re-derived from the
// decoded counters. Any structural problem fails with ErrCorrupt.
func DecodeCompressed(data []byte) (*Histogram, error) {
	rest, err := checkBlockHeader(data, blockMagic)
	if err != nil {
		return nil, err
	}
	clen, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, errors.Wrap(ErrCorrupt, "bad compressed length")
	}
	rest = rest[n:]
	if uint64(len(rest)) != clen {
		return nil, errors.Wrapf(ErrCorrupt, "compressed payload is %d bytes, header says %d", len(rest), clen)
	}
	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, err.Error())
	}
	defer zr.Close()
	br := bufio.NewReader(zr)

	lowest, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, "truncated configuration")
	}
	highest, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, "truncated configuration")
	}
	sigfigs, err := br.ReadByte()
	if err != nil {
		return nil, errors.Wrap(ErrCorrupt, "truncated configuration")
	}
	if lowest > math.MaxInt64 || highest > math.MaxInt64 {
		return nil, errors.Wrap(ErrCorrupt, "configuration out of range")
	}
	h, err := New(int64(lowest), int64(highest), int(sigfigs))
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "unrealizable configuration: %v", err)
	}

	idx := 0
	for {
		v, err := binary.ReadVarint(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, "truncated counter stream")
		}
		if v < 0 {
			run := -v
			if run < 0 || int64(idx)+run > int64(h.geom.countsLen) {
				return nil, errors.Wrap(ErrCorrupt, "zero run overruns geometry")
			}
			idx += int(run)
			continue
		}
		if idx >= h.geom.countsLen {
			return nil, errors.Wrap(ErrCorrupt, "counter stream overruns geometry")
		}
		h.counts.set(idx, v)
		idx++
	}
	h.rederiveStats()
	return h, nil
}

// EncodeCompressed serializes the double histogram: a double envelope
// carrying the configured dynamic range and the current conversion
// factor, followed by the internal integer block.
func (d *DoubleHistogram) EncodeCompressed() ([]byte, error) {
	inner, err := d.ints.EncodeCompressed()
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), doubleBlockMagic[:]...)
	out = append(out, blockMajorVersion, blockMinorVersion)
	out = binary.AppendUvarint(out, uint64(d.ratio))
	var conv [8]byte
	binary.BigEndian.PutUint64(conv[:], math.Float64bits(d.conversion))
	out = append(out, conv[:]...)
	return append(out, inner...), nil
}

// DecodeDoubleCompressed reconstructs a double histogram from a block
// produced by DoubleHistogram.EncodeCompressed. Envelopes that disagree
// with the embedded integer histogram fail with ErrCorrupt.
func DecodeDoubleCompressed(data []byte) (*DoubleHistogram, error) {
	rest, err := checkBlockHeader(data, doubleBlockMagic)
	if err != nil {
		return nil, err
	}
	ratio, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, errors.Wrap(ErrCorrupt, "bad dynamic range")
	}
	rest = rest[n:]
	if ratio < 2 || ratio > math.MaxInt64 {
		return nil, errors.Wrapf(ErrCorrupt, "dynamic range %d out of range", ratio)
	}
	if len(rest) < 8 {
		return nil, errors.Wrap(ErrCorrupt, "truncated conversion factor")
	}
	conversion := math.Float64frombits(binary.BigEndian.Uint64(rest[:8]))
	if math.IsNaN(conversion) || math.IsInf(conversion, 0) || conversion < 0 {
		return nil, errors.Wrap(ErrCorrupt, "bad conversion factor")
	}
	ints, err := DecodeCompressed(rest[8:])
	if err != nil {
		return nil, err
	}
	r := int64(ratio)
	if r > math.MaxInt64/(2*powersOf10[ints.sigfigs]) || ints.lowest != 1 ||
		ints.highest != 2*powersOf10[ints.sigfigs]*r {
		return nil, errors.Wrapf(ErrCorrupt, "dynamic range %d disagrees with embedded span [%d, %d]",
			r, ints.lowest, ints.highest)
	}
	if conversion == 0 && ints.totalCount != ints.counts.get(0) {
		return nil, errors.Wrap(ErrCorrupt, "un-anchored block carries non-zero values")
	}
	return &DoubleHistogram{
		ratio:      r,
		sigfigs:    ints.sigfigs,
		conversion: conversion,
		ints:       ints,
	}, nil
}
