package main

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestBackupsToDelete(t *testing.T) {
	now := time.Now()
	objects := []types.Object{
		{Key: aws.String("backup-old.sql.gz"), LastModified: aws.Time(now.Add(-72 * time.Hour))},
		{Key: aws.String("backup-new.sql.gz"), LastModified: aws.Time(now)},
		{Key: aws.String("backup-mid.sql.gz"), LastModified: aws.Time(now.Add(-24 * time.Hour))},
	}

	// копий меньше лимита, ротация не нужна
	assert.Nil(t, backupsToDelete(objects, 3))
	assert.Nil(t, backupsToDelete(objects, 5))

	// удаляются только старейшие сверх лимита
	assert.Equal(t, []string{"backup-old.sql.gz"}, backupsToDelete(objects, 2))
	assert.Equal(t, []string{"backup-mid.sql.gz", "backup-old.sql.gz"}, backupsToDelete(objects, 1))
}
