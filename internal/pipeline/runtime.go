package pipeline

import (
	"io"

	"github.com/robert-malhotra/tomoslice/hdf5"
	"github.com/robert-malhotra/tomoslice/internal/dtype"
	"github.com/robert-malhotra/tomoslice/internal/wavelet"
)

// Runtime is process wide codec setup, done once per run.
type Runtime interface {
	Init() (version string, err error)
	Shutdown()
}

// DefaultRuntime reports the codec version and holds no state.
type DefaultRuntime struct{}

func (DefaultRuntime) Init() (string, error) { return wavelet.Version(), nil }
func (DefaultRuntime) Shutdown()             {}

// Source is the dataset slices are read from.
type Source interface {
	SliceSource
	Shape() []uint64
	Dtype() (dtype.Info, error)
}

// Sink stores one encoded chunk.
type Sink interface {
	WriteChunk(offset []uint64, frame []byte) error
}

// Opener opens the source and creates the destination. The returned
// closers are released by Run.
type Opener interface {
	OpenSource(path, dataset string) (Source, io.Closer, error)
	CreateSink(path, dataset string, def hdf5.DirectDatasetSpec) (Sink, io.Closer, error)
}

// HDF5Opener works on HDF5 files.
type HDF5Opener struct{}

func (HDF5Opener) OpenSource(path, dataset string) (Source, io.Closer, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, nil, err
	}
	ds, err := f.OpenDataset(dataset)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return ds, f, nil
}

func (HDF5Opener) CreateSink(path, dataset string, def hdf5.DirectDatasetSpec) (Sink, io.Closer, error) {
	f, err := hdf5.Create(path)
	if err != nil {
		return nil, nil, err
	}
	ds, err := f.CreateDirectDataset(dataset, def)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return ds, f, nil
}
