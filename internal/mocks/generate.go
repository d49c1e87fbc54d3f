package mocks

//go:generate mockery --name RawStore --srcpkg github.com/aevon-lab/growthmart/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
