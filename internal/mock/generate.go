package mock

//go:generate mockgen -destination blockimage.go -package mock github.com/buildbarn/bb-extentfs/pkg/blockimage Image
//go:generate mockgen -destination clock.go -package mock github.com/buildbarn/bb-storage/pkg/clock Clock,Timer
//go:generate mockgen -destination extentfs.go -package mock github.com/buildbarn/bb-extentfs/pkg/extentfs FileSystem,DirectoryEntryReporter
